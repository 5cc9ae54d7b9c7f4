package gridstore

import "github.com/rs/zerolog"

// Default connection surface for local demos.
const (
	DefaultURI        = "mongodb://localhost:27017"
	DefaultDatabase   = "griddemo"
	DefaultCollection = "rows"
)

// Build creates a Store, filling unset Config fields with the defaults.
func Build(cfg Config, logger zerolog.Logger) *Store {
	if cfg.URI == "" {
		cfg.URI = DefaultURI
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	return New(cfg, logger)
}
