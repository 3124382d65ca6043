package repomanager

import (
	"context"

	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
)

// InMemoryRepositoryManager keeps achievements in process memory. It has no
// schema and nothing to close.
type InMemoryRepositoryManager struct {
	achievements *achievements.InMemoryRepository
}

// NewInMemoryRepositoryManager returns a manager over an empty store.
func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{achievements: achievements.NewInMemoryRepository()}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error {
	return nil
}

func (m *InMemoryRepositoryManager) Achievements() achievements.Repository {
	return m.achievements
}

func (m *InMemoryRepositoryManager) Close(context.Context) error {
	return nil
}
