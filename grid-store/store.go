// Package gridstore is the relay's persistence adapter: a thin document-store
// DAO whose every failure mode is log-and-continue. The relay runs fine
// without it.
package gridstore

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	griddata "github.com/gridlive/gridlive/grid-data"
)

const connectTimeout = 5 * time.Second

// reconnectCooldown suppresses repeated dial attempts after a failed
// connect, so a store outage costs one attempt per window instead of one per
// queued write.
const reconnectCooldown = 5 * time.Second

// Store provides the upsert-and-log write contract against one collection of
// row documents.
type Store struct {
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	client      *mongo.Client
	coll        *mongo.Collection
	lastErr     error
	lastAttempt time.Time
}

func New(cfg Config, logger zerolog.Logger) *Store {
	return &Store{cfg: cfg, logger: logger}
}

// Connect establishes the store connection and seeds the initial dataset if
// the collection is empty. Idempotent: once connected, repeated calls are
// no-ops, so it doubles as the lazy first-use hook. After a failed attempt,
// calls within the cooldown fail fast instead of redialling.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coll != nil {
		return nil
	}
	if s.lastErr != nil && time.Since(s.lastAttempt) < reconnectCooldown {
		return fmt.Errorf("store unavailable (retry suppressed): %w", s.lastErr)
	}
	s.lastAttempt = time.Now()

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.cfg.URI))
	if err != nil {
		s.lastErr = err
		return fmt.Errorf("connecting to store at %v: %w", s.cfg.URI, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		s.lastErr = err
		return fmt.Errorf("pinging store at %v: %w", s.cfg.URI, err)
	}

	coll := client.Database(s.cfg.Database).Collection(s.cfg.Collection)
	if err := s.seed(ctx, coll); err != nil {
		// Seeding is a convenience; a partially seeded or unseedable
		// collection still accepts writes.
		s.logger.Warn().Err(err).Msg("failed to seed initial dataset")
	}

	s.client = client
	s.coll = coll
	s.lastErr = nil
	s.logger.Info().
		Str("database", s.cfg.Database).
		Str("collection", s.cfg.Collection).
		Msg("store connected")
	return nil
}

// Connected reports whether the store connection has been established.
func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll != nil
}

func (s *Store) collection(ctx context.Context) (*mongo.Collection, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll, nil
}

func (s *Store) seed(ctx context.Context, coll *mongo.Collection) error {
	if s.cfg.SeedRows <= 0 {
		return nil
	}
	count, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	if count > 0 {
		return nil
	}

	s.logger.Info().Int("rows", s.cfg.SeedRows).Msg("seeding empty store")
	now := uint64(time.Now().UnixNano())
	r := rand.New(rand.NewPCG(now, now>>32))

	rows := griddata.GenerateRows(s.cfg.SeedRows, r)
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row)
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("inserting seed rows: %w", err)
	}
	return nil
}

// UpsertCell sets the current value of one cell and appends the change to the
// row's update history in a single write. Returns whether the write took
// effect.
func (s *Store) UpsertCell(ctx context.Context, rowID, columnID string, value interface{}, ts time.Time) (bool, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return false, err
	}

	filter, update := upsertCellDocs(rowID, columnID, value, ts)
	res, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("upserting cell %v.%v: %w", rowID, columnID, err)
	}
	return res.ModifiedCount+res.UpsertedCount > 0, nil
}

// upsertCellDocs builds the filter and update documents for one cell write:
// set the projection, append to the history, both in the same update.
func upsertCellDocs(rowID, columnID string, value interface{}, ts time.Time) (bson.M, bson.M) {
	filter := bson.M{"rowId": rowID}
	update := bson.M{
		"$set": bson.M{
			columnID:      value,
			"lastUpdated": ts,
		},
		"$push": bson.M{
			"updateHistory": UpdateRecord{
				ColumnID:  columnID,
				NewValue:  value,
				Timestamp: ts,
			},
		},
	}
	return filter, update
}

// FetchRows returns limit row documents starting at row index start, ordered
// by row index. The update history is projected out; it is an audit log, not
// grid data.
func (s *Store) FetchRows(ctx context.Context, start, limit int) ([]map[string]interface{}, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "rowIndex", Value: 1}}).
		SetSkip(int64(start)).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 0, "updateHistory": 0})

	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []map[string]interface{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding rows: %w", err)
	}
	return rows, nil
}

// Disconnect closes the store connection. Safe to call when never connected.
func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	s.coll = nil
	return err
}
