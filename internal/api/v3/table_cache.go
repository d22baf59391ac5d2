package v3

import (
	"sync"
	"time"

	"masterplan/internal/planner"
)

type cachedTable struct {
	table     *planner.MasterTable
	expiresAt time.Time
}

// tableCache 最近运行的主表，按运行 ID 索引
type tableCache struct {
	mu    sync.Mutex
	items map[string]cachedTable
}

func newTableCache() *tableCache {
	return &tableCache{
		items: make(map[string]cachedTable),
	}
}

func (s *tableCache) put(runID string, table *planner.MasterTable, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(time.Now())

	s.items[runID] = cachedTable{
		table:     table,
		expiresAt: time.Now().Add(ttl),
	}
}

func (s *tableCache) get(runID string) (*planner.MasterTable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[runID]
	if !ok {
		return nil, false
	}
	if time.Now().After(v.expiresAt) {
		delete(s.items, runID)
		return nil, false
	}
	return v.table, true
}

func (s *tableCache) purgeExpiredLocked(now time.Time) {
	for k, v := range s.items {
		if now.After(v.expiresAt) {
			delete(s.items, k)
		}
	}
}
