package gridrest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

type fakeRows struct {
	rows []map[string]interface{}
	err  error

	start, limit int
}

func (f *fakeRows) FetchRows(ctx context.Context, start, limit int) ([]map[string]interface{}, error) {
	f.start, f.limit = start, limit
	if f.err != nil {
		return nil, f.err
	}
	if start >= len(f.rows) {
		return nil, nil
	}
	end := start + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[start:end], nil
}

func newTestAPI(rows *fakeRows) *httptest.Server {
	api := &API{
		Rows:   rows,
		WS:     http.NotFoundHandler(),
		Logger: zerolog.Nop(),
	}
	return httptest.NewServer(api.Router())
}

func TestHealthcheck(t *testing.T) {
	srv := newTestAPI(&fakeRows{})
	defer srv.Close()

	for _, path := range []string{"/", "/health"} {
		res, err := http.Get(srv.URL + path)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, res.Header.Get("Content-Type"), "text/plain")
		assert.Equal(t, "OK", readBody(t, res))
	}
}

func TestUnknownPath(t *testing.T) {
	srv := newTestAPI(&fakeRows{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/nope")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestListRows(t *testing.T) {
	rows := &fakeRows{rows: []map[string]interface{}{
		{"rowId": "row_1", "revenue": 100},
		{"rowId": "row_2", "revenue": 200},
		{"rowId": "row_3", "revenue": 300},
	}}
	srv := newTestAPI(rows)
	defer srv.Close()

	t.Run("range", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/api/rows?start=1&limit=2")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var got []map[string]interface{}
		assert.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		assert.Equal(t, 2, len(got))
		assert.Equal(t, "row_2", got[0]["rowId"])
	})

	t.Run("limit capped", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/api/rows?limit=99999")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, MaxRowLimit, rows.limit)
	})

	t.Run("bad range", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/api/rows?start=abc")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("empty past end", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/api/rows?start=100")
		assert.NoError(t, err)

		var got []map[string]interface{}
		assert.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		assert.Equal(t, 0, len(got))
	})
}

func TestListRowsStoreDown(t *testing.T) {
	srv := newTestAPI(&fakeRows{err: errors.New("store unreachable")})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/rows")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestExportCSV(t *testing.T) {
	srv := newTestAPI(&fakeRows{rows: []map[string]interface{}{
		{"rowId": "row_1", "name": "Account 1", "revenue": 100, "verified": true},
		{"rowId": "row_2", "name": "Account 2", "revenue": 200},
	}})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/export.csv")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/csv")

	records, err := csv.NewReader(res.Body).ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, 3, len(records)) // header + 2 rows

	header := records[0]
	assert.Equal(t, "rowId", header[0])
	assert.Equal(t, 3+93, len(header))

	assert.Equal(t, "row_1", records[1][0])
	assert.Equal(t, "100", records[1][indexOf(t, header, "revenue")])
	assert.Equal(t, "true", records[1][indexOf(t, header, "verified")])
	assert.Equal(t, "", records[2][indexOf(t, header, "verified")])
}

func indexOf(t *testing.T, haystack []string, needle string) int {
	t.Helper()
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	t.Fatalf("column %v not found", needle)
	return -1
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	return string(data)
}
