// Package directory provides read-only access to a company's branch records and
// their latest compliance percentages, as immutable snapshots.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// ErrCompanyNotFound is returned when the record store has no such company.
var ErrCompanyNotFound = errors.New("company not found")

// Company is a tenant ("empresa") in the record store
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Directory is the record store collaborator consumed by the folder browser.
type Directory interface {
	// Companies lists every company, ordered by name.
	Companies(ctx context.Context) ([]Company, error)
	// Snapshot loads the branches of one company with their latest percentages.
	Snapshot(ctx context.Context, companyID string) (*Snapshot, error)
}

// Snapshot is an immutable view of a company's branches taken at one point in time.
type Snapshot struct {
	company  Company
	branches []models.BranchRecord
	byID     map[string]int
	takenAt  time.Time
}

// NewSnapshot copies branches into a new snapshot.
func NewSnapshot(company Company, branches []models.BranchRecord) *Snapshot {
	s := &Snapshot{
		company:  company,
		branches: make([]models.BranchRecord, len(branches)),
		byID:     make(map[string]int, len(branches)),
		takenAt:  time.Now(),
	}
	for i, b := range branches {
		if b.CompliancePercentage != nil {
			p := *b.CompliancePercentage
			b.CompliancePercentage = &p
		}
		s.branches[i] = b
		if _, dup := s.byID[b.ID]; !dup {
			s.byID[b.ID] = i
		}
	}
	return s
}

// EmptySnapshot returns a snapshot with no branches.
func EmptySnapshot(company Company) *Snapshot {
	return NewSnapshot(company, nil)
}

// Company returns the company the snapshot belongs to.
func (s *Snapshot) Company() Company {
	if s == nil {
		return Company{}
	}
	return s.company
}

// TakenAt returns when the snapshot was built.
func (s *Snapshot) TakenAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.takenAt
}

// Len returns the number of branches.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.branches)
}

// Branches returns a copy of the branch list in record-store order.
func (s *Snapshot) Branches() []models.BranchRecord {
	if s == nil {
		return nil
	}
	out := make([]models.BranchRecord, len(s.branches))
	copy(out, s.branches)
	return out
}

// Branch looks up a branch by id.
func (s *Snapshot) Branch(id string) (models.BranchRecord, bool) {
	if s == nil {
		return models.BranchRecord{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return models.BranchRecord{}, false
	}
	return s.branches[i], true
}

// CompliancePercentage returns the latest percentage for a branch, if one was measured.
func (s *Snapshot) CompliancePercentage(branchID string) (float64, bool) {
	b, ok := s.Branch(branchID)
	if !ok || b.CompliancePercentage == nil {
		return 0, false
	}
	return *b.CompliancePercentage, true
}
