package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// MemoryStore is an in-process Directory. Safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	companies map[string]Company
	branches  map[string][]models.BranchRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies: make(map[string]Company),
		branches:  make(map[string][]models.BranchRecord),
	}
}

// Put replaces a company and its branches.
func (m *MemoryStore) Put(company Company, branches []models.BranchRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[company.ID] = company
	m.branches[company.ID] = append([]models.BranchRecord(nil), branches...)
}

// SetCompliance updates one branch's latest percentage.
func (m *MemoryStore) SetCompliance(companyID, branchID string, pct float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.branches[companyID]
	for i := range list {
		if list[i].ID == branchID {
			p := pct
			list[i].CompliancePercentage = &p
			return nil
		}
	}
	return fmt.Errorf("branch %s of company %s not found", branchID, companyID)
}

// Companies implements Directory.
func (m *MemoryStore) Companies(ctx context.Context) ([]Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Company, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Snapshot implements Directory.
func (m *MemoryStore) Snapshot(ctx context.Context, companyID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, companyID)
	}
	return NewSnapshot(c, m.branches[companyID]), nil
}

var _ Directory = (*MemoryStore)(nil)
