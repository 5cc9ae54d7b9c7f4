package gridstore

import "time"

// UpdateRecord is one entry in a row's append-only update history.
type UpdateRecord struct {
	ColumnID  string      `bson:"columnId"`
	NewValue  interface{} `bson:"newValue"`
	Timestamp time.Time   `bson:"timestamp"`
}

// Config is the store's connection surface. Zero values fall back to the
// defaults in build.go.
type Config struct {
	URI        string
	Database   string
	Collection string

	// SeedRows is the number of mock rows inserted when the collection is
	// found empty on first connect. Zero disables seeding.
	SeedRows int
}
