package reporting

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo serves seeded summaries; useful for handler tests.
type MemoryRepo struct {
	mu        sync.Mutex
	summaries map[string][]AgentDaySummary // by business id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{summaries: make(map[string][]AgentDaySummary)}
}

func (r *MemoryRepo) Seed(businessID string, s ...AgentDaySummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[businessID] = append(r.summaries[businessID], s...)
}

func (r *MemoryRepo) AgentDaySummaries(ctx context.Context, businessID string, from, to, now time.Time) ([]AgentDaySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]AgentDaySummary, len(r.summaries[businessID]))
	copy(out, r.summaries[businessID])
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })
	return out, nil
}
