package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/ports"
)

// Compile-time interface check.
var _ ports.AssessmentStore = (*MemoryStore)(nil)

// MemoryStore keeps assessment history in memory. Used when no database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[uuid.UUID]domain.RiskAssessment
	order       []uuid.UUID
	limit       int
}

// NewMemoryStore creates a store that keeps at most limit assessments (0 means unbounded)
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{
		assessments: make(map[uuid.UUID]domain.RiskAssessment),
		limit:       limit,
	}
}

// SaveAssessment stores a copy of the assessment, evicting the oldest beyond the limit
func (m *MemoryStore) SaveAssessment(ctx context.Context, session domain.AnalysisSession, assessment *domain.RiskAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := *assessment
	a.SessionID = session.ID
	a.Reasons = append([]string(nil), assessment.Reasons...)
	a.Contributing = append([]domain.SignalName(nil), assessment.Contributing...)

	if _, exists := m.assessments[a.ID]; !exists {
		m.order = append(m.order, a.ID)
	}
	m.assessments[a.ID] = a

	if m.limit > 0 && len(m.order) > m.limit {
		evict := m.order[0]
		m.order = m.order[1:]
		delete(m.assessments, evict)
	}
	return nil
}

// GetAssessment returns a stored assessment by id
func (m *MemoryStore) GetAssessment(ctx context.Context, id uuid.UUID) (*domain.RiskAssessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assessments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// RecentHighRisk returns high-risk assessments, newest first
func (m *MemoryStore) RecentHighRisk(ctx context.Context, limit int) ([]domain.RiskAssessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.RiskAssessment, 0)
	for _, id := range m.order {
		if a := m.assessments[id]; a.RiskLevel == domain.RiskHigh {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AssessedAt.After(out[j].AssessedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
