package gridws

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	griddata "github.com/gridlive/gridlive/grid-data"
)

// DefaultGeneratorInterval is how often demo mode synthesizes an update.
const DefaultGeneratorInterval = 2 * time.Second

// Generator periodically synthesizes a cell update for a random row and
// recognized column and pushes it through the relay's broadcast path. It
// lets the relay be demoed without a driving UI.
type Generator struct {
	Relay  *Relay
	Logger zerolog.Logger

	// Interval overrides DefaultGeneratorInterval when positive.
	Interval time.Duration

	// Rows is the row-id space to draw from; defaults to 1000.
	Rows int

	// Persist enables the enhanced demo mode in which synthetic updates
	// are also written through the store.
	Persist bool

	// Rand allows deterministic tests; defaults to a time-seeded source.
	Rand *rand.Rand
}

func (g *Generator) interval() time.Duration {
	if g.Interval > 0 {
		return g.Interval
	}
	return DefaultGeneratorInterval
}

func (g *Generator) rows() int {
	if g.Rows > 0 {
		return g.Rows
	}
	return 1000
}

func (g *Generator) rand() *rand.Rand {
	if g.Rand == nil {
		now := uint64(time.Now().UnixNano())
		g.Rand = rand.New(rand.NewPCG(now, now>>32))
	}
	return g.Rand
}

// Run emits synthetic updates on a ticker until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.interval())
	defer ticker.Stop()

	g.Logger.Info().
		Dur("interval", g.interval()).
		Bool("persist", g.Persist).
		Msg("synthetic update generator started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.emit(ctx)
		}
	}
}

func (g *Generator) emit(ctx context.Context) {
	r := g.rand()
	column := griddata.RandomColumn(r)
	value, _ := griddata.RandomValue(column, r)

	raw, err := json.Marshal(value)
	if err != nil {
		g.Logger.Error().Err(err).Str("column_id", column).Msg("failed to encode synthetic value")
		return
	}

	g.Relay.Submit(ctx, CellUpdate{
		RowID:    griddata.RowID(r.IntN(g.rows()) + 1),
		ColumnID: column,
		NewValue: raw,
	}, g.Persist)
}
