package gridws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	griddata "github.com/gridlive/gridlive/grid-data"
	gridmetrics "github.com/gridlive/gridlive/grid-metrics"
)

// Store is the persistence capability the relay uses. Every write is best
// effort: errors and false results are logged and never gate broadcast.
type Store interface {
	UpsertCell(ctx context.Context, rowID, columnID string, value interface{}, ts time.Time) (bool, error)
}

// Update sources, for logs and metrics.
const (
	SourceClient    = "client"
	SourceSynthetic = "synthetic"
)

// DefaultQueueSize bounds the inbound queue. Producers block when it is
// full rather than buffering without limit.
const DefaultQueueSize = 256

// DefaultPersistConcurrency bounds in-flight best-effort writes. When the
// store is slow or down, further writes are skipped instead of stacking up
// goroutines behind it.
const DefaultPersistConcurrency = 16

type inbound struct {
	origin  *Conn // nil for synthetic updates
	update  CellUpdate
	persist bool
	source  string
}

// Relay is the broadcast core. A single consuming goroutine (Run) drains the
// inbound queue, so acceptance order, assigned timestamps, and broadcast
// order all agree, and registry state is never torn mid-broadcast.
type Relay struct {
	Registry *Registry
	Store    Store // optional; nil disables persistence entirely
	Logger   zerolog.Logger
	Metrics  *gridmetrics.Metrics // optional

	// ExcludeOrigin suppresses the echo of an update back to the client
	// that sent it. Off by default: clients are expected to tolerate
	// seeing their own edits.
	ExcludeOrigin bool

	// QueueSize overrides DefaultQueueSize when positive.
	QueueSize int

	// PersistConcurrency overrides DefaultPersistConcurrency when positive.
	PersistConcurrency int

	initOnce   sync.Once
	queue      chan inbound
	persistSem *semaphore.Weighted
}

func (r *Relay) init() {
	r.initOnce.Do(func() {
		size := r.QueueSize
		if size <= 0 {
			size = DefaultQueueSize
		}
		r.queue = make(chan inbound, size)

		writes := r.PersistConcurrency
		if writes <= 0 {
			writes = DefaultPersistConcurrency
		}
		r.persistSem = semaphore.NewWeighted(int64(writes))
	})
}

// Run consumes and processes inbound updates until ctx is cancelled. It must
// be running for HandleRaw/Submit traffic to make progress.
func (r *Relay) Run(ctx context.Context) error {
	r.init()
	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-r.queue:
			r.process(ctx, in)
		}
	}
}

// HandleRaw accepts one raw frame from connection origin. Malformed frames
// and frames naming an unrecognized column are logged and dropped; the
// connection stays open either way.
func (r *Relay) HandleRaw(ctx context.Context, origin *Conn, raw []byte) {
	in, ok := r.accept(origin, raw)
	if !ok {
		return
	}
	r.enqueue(ctx, in)
}

// Submit queues one internally constructed update, used by the synthetic
// generator. persist selects the enhanced demo mode that also writes
// synthetic updates through the store.
func (r *Relay) Submit(ctx context.Context, u CellUpdate, persist bool) {
	r.enqueue(ctx, inbound{update: u, persist: persist, source: SourceSynthetic})
}

func (r *Relay) accept(origin *Conn, raw []byte) (inbound, bool) {
	msg, err := ParseMessage(raw)
	if err != nil {
		r.Logger.Warn().Err(err).Str("connection_id", origin.ID()).Msg("dropping malformed message")
		return inbound{}, false
	}
	if msg.Type != MsgUpdate {
		r.Logger.Warn().Str("type", msg.Type).Str("connection_id", origin.ID()).Msg("dropping unexpected message type")
		return inbound{}, false
	}
	if !griddata.IsUpdateable(msg.ColumnID) {
		r.Logger.Warn().Str("column_id", msg.ColumnID).Str("connection_id", origin.ID()).Msg("dropping update for unrecognized column")
		return inbound{}, false
	}
	return inbound{
		origin: origin,
		update: CellUpdate{
			RowID:    msg.RowID,
			ColumnID: msg.ColumnID,
			NewValue: msg.NewValue,
		},
		persist: true,
		source:  SourceClient,
	}, true
}

func (r *Relay) enqueue(ctx context.Context, in inbound) {
	r.init()
	select {
	case r.queue <- in:
	case <-ctx.Done():
	}
}

// process handles one accepted update: stamp, best-effort persist, fan out.
func (r *Relay) process(ctx context.Context, in inbound) {
	r.init()
	in.update.Timestamp = time.Now().UTC()
	r.Metrics.UpdateAccepted(in.source)

	// Fire and forget: a hung or unreachable store must not stall live
	// fan-out between already-connected clients. Durability is best effort,
	// so when the store falls behind, further writes are shed rather than
	// queued.
	if in.persist && r.Store != nil {
		if r.persistSem.TryAcquire(1) {
			u := in.update
			go func() {
				defer r.persistSem.Release(1)
				r.persist(ctx, u)
			}()
		} else {
			r.Logger.Warn().Str("row_id", in.update.RowID).Str("column_id", in.update.ColumnID).Msg("persist skipped: store not keeping up")
			r.Metrics.PersistFailed()
		}
	}

	data := UpdateMessage(in.update)
	r.Registry.ForEach(func(c *Conn) {
		if r.ExcludeOrigin && in.origin != nil && c == in.origin {
			return
		}
		if err := c.Send(data); err != nil {
			r.Logger.Warn().Err(err).Str("connection_id", c.ID()).Msg("send failed, dropping connection")
			r.Metrics.SendFailed()
			r.Registry.Unregister(c)
			if closeErr := c.Close(); closeErr != nil {
				r.Logger.Debug().Err(closeErr).Str("connection_id", c.ID()).Msg("close after send failure")
			}
		}
	})
}

func (r *Relay) persist(ctx context.Context, u CellUpdate) {
	var value interface{}
	if err := json.Unmarshal(u.NewValue, &value); err != nil {
		r.Logger.Warn().Err(err).Str("row_id", u.RowID).Str("column_id", u.ColumnID).Msg("persist skipped: undecodable value")
		r.Metrics.PersistFailed()
		return
	}

	ok, err := r.Store.UpsertCell(ctx, u.RowID, u.ColumnID, value, u.Timestamp)
	if err != nil {
		r.Logger.Warn().Err(err).Str("row_id", u.RowID).Str("column_id", u.ColumnID).Msg("persist failed")
		r.Metrics.PersistFailed()
		return
	}
	if !ok {
		r.Logger.Warn().Str("row_id", u.RowID).Str("column_id", u.ColumnID).Msg("persist reported no write")
		r.Metrics.PersistFailed()
	}
}
