package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// snapshotFile is the on-disk export format:
//
//	{"companies":[{"id":"c1","name":"Acme Corp","branches":[
//	  {"id":"norte","displayName":"Sucursal Norte","compliancePercentage":87.5}]}]}
type snapshotFile struct {
	Companies []struct {
		Company
		Branches []models.BranchRecord `json:"branches"`
	} `json:"companies"`
}

// FileStore reads a JSON export of the record store. The file is re-read on
// every call, so edits show up at the next browser initialisation.
type FileStore struct {
	path string
}

// NewFileStore creates a store over path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) load() (*MemoryStore, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read branch snapshot: %w", err)
	}
	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse branch snapshot %s: %w", f.path, err)
	}
	m := NewMemoryStore()
	for _, c := range sf.Companies {
		if c.ID == "" {
			return nil, fmt.Errorf("parse branch snapshot %s: company without id", f.path)
		}
		m.Put(c.Company, c.Branches)
	}
	return m, nil
}

// Companies implements Directory.
func (f *FileStore) Companies(ctx context.Context) ([]Company, error) {
	m, err := f.load()
	if err != nil {
		return nil, err
	}
	return m.Companies(ctx)
}

// Snapshot implements Directory.
func (f *FileStore) Snapshot(ctx context.Context, companyID string) (*Snapshot, error) {
	m, err := f.load()
	if err != nil {
		return nil, err
	}
	return m.Snapshot(ctx, companyID)
}

var _ Directory = (*FileStore)(nil)
