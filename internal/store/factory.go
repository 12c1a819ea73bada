package store

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	EngineJSON     = "json"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineBolt     = "bolt"
)

// NewByEngine opens the named engine. location is a file path for the
// embedded engines and a connection string for postgres.
func NewByEngine(engine string, location string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineSQLite:
		return NewSQLiteStore(location)
	case EngineJSON:
		return NewJSONStore(location)
	case EngineBolt:
		return NewBoltStore(location)
	case EnginePostgres:
		return NewPostgresStore(location)
	default:
		return nil, errors.Errorf("unsupported store engine: %s", engine)
	}
}

// DefaultLocation is the data file used when none is configured.
func DefaultLocation(engine string) string {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case EngineJSON:
		return "data/hit.json"
	case EngineBolt:
		return "data/hit.bolt"
	case EnginePostgres:
		return "postgres://localhost/hit?sslmode=disable"
	default:
		return "data/hit.db"
	}
}
