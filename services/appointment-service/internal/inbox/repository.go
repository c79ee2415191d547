// Package inbox deduplicates inbound provider messages by their external id.
package inbox

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/homelube/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record returns false when messageID was already seen.
func (r *Repository) Record(ctx context.Context, messageID string, source string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_messages (message_id, source)
		VALUES ($1, $2)
	`, messageID, source)
	if err == nil {
		return true, nil
	}
	if db.IsUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

// Release forgets a message so a provider retry is processed again.
func (r *Repository) Release(ctx context.Context, messageID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM inbox_messages WHERE message_id = $1`, messageID)
	return err
}

type Memory struct {
	mu   sync.Mutex
	seen map[string]string
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]string{}}
}

func (m *Memory) Record(_ context.Context, messageID string, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[messageID]; ok {
		return false, nil
	}
	m.seen[messageID] = source
	return true, nil
}

func (m *Memory) Release(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, messageID)
	return nil
}
