package griddata

import (
	"fmt"
	"math/rand/v2"
)

// RowID returns the canonical row identifier for a 1-based row index.
func RowID(index int) string {
	return fmt.Sprintf("row_%d", index)
}

// GenerateRow builds one mock row document: identity fields plus one value
// per recognized updateable column.
func GenerateRow(index int, r *rand.Rand) map[string]interface{} {
	row := map[string]interface{}{
		"rowId":    RowID(index),
		"rowIndex": index,
		"name":     fmt.Sprintf("Account %d", index),
		"region":   Regions[r.IntN(len(Regions))],
	}
	for _, col := range updateableColumns {
		v, _ := RandomValue(col, r)
		row[col] = v
	}
	return row
}

// GenerateRows builds n mock rows with 1-based indices. Used once to seed an
// empty store; not part of any hot path.
func GenerateRows(n int, r *rand.Rand) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, GenerateRow(i, r))
	}
	return rows
}
