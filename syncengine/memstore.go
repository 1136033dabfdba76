package syncengine

import (
	"context"
	"sort"
	"sync"

	"bitbucket.org/mmdatafocus/register_backend/models"
)

// MemorySharedStore is the shared store used when no DB_HOST is configured
// (single-register dev mode) and by the deterministic tests.
type MemorySharedStore struct {
	mu          sync.RWMutex
	sales       map[string]models.SharedSaleRow
	vendorStats map[string]models.SharedVendorStatRow
	sessions    map[string]models.Session

	// FailWrites makes every write return an error, simulating an outage.
	FailWrites bool
	// FailPing makes the keepalive probe fail.
	FailPing bool
}

type memStoreError string

func (e memStoreError) Error() string { return string(e) }

const errMemStoreDown = memStoreError("shared store unreachable")

func NewMemorySharedStore() *MemorySharedStore {
	return &MemorySharedStore{
		sales:       map[string]models.SharedSaleRow{},
		vendorStats: map[string]models.SharedVendorStatRow{},
		sessions:    map[string]models.Session{},
	}
}

func (s *MemorySharedStore) SetFailing(writes, ping bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailWrites = writes
	s.FailPing = ping
}

func (s *MemorySharedStore) UpsertSale(ctx context.Context, row models.SharedSaleRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errMemStoreDown
	}
	s.sales[row.ID] = row
	return nil
}

func (s *MemorySharedStore) UpsertVendorStat(ctx context.Context, row models.SharedVendorStatRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errMemStoreDown
	}
	s.vendorStats[row.VendorId+"|"+row.TerminalId] = row
	return nil
}

func (s *MemorySharedStore) UpsertSession(ctx context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errMemStoreDown
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySharedStore) RecentSales(ctx context.Context, limit int) ([]models.SharedSaleRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailPing {
		return nil, errMemStoreDown
	}
	rows := make([]models.SharedSaleRow, 0, len(s.sales))
	for _, row := range s.sales {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *MemorySharedStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailPing {
		return errMemStoreDown
	}
	return nil
}

// SaleCount reports how many distinct sale rows the store holds.
func (s *MemorySharedStore) SaleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sales)
}

// GetSale returns a stored row by id.
func (s *MemorySharedStore) GetSale(id string) (models.SharedSaleRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.sales[id]
	return row, ok
}

// MemoryFeed fans sale-insert events out to in-process subscribers.
type MemoryFeed struct {
	mu       sync.Mutex
	handlers []func(models.SharedSaleRow)
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{}
}

func (f *MemoryFeed) Publish(ctx context.Context, row models.SharedSaleRow) error {
	f.mu.Lock()
	handlers := make([]func(models.SharedSaleRow), len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()

	for _, h := range handlers {
		h(row)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, handler func(models.SharedSaleRow)) error {
	f.mu.Lock()
	f.handlers = append(f.handlers, handler)
	f.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}
