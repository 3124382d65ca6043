// Package repomanager opens the configured achievement store, prepares its
// schema and vends the repository bound to it.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// RepositoryManager owns the store connection.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Achievements() achievements.Repository
	Close(ctx context.Context) error
}

// Options select and address a backend.
type Options struct {
	Backend       string
	DatabaseDSN   string
	MongoURI      string
	MongoDatabase string
}

// New opens the backend named by opts.Backend.
func New(ctx context.Context, opts Options) (RepositoryManager, error) {
	switch opts.Backend {
	case BackendPostgres:
		db, err := OpenPostgres(ctx, opts.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return NewPostgresRepositoryManager(db), nil
	case BackendMongo:
		client, err := ConnectMongo(ctx, opts.MongoURI)
		if err != nil {
			return nil, err
		}
		return NewMongoRepositoryManager(client, opts.MongoDatabase), nil
	case BackendMemory:
		return NewInMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
