package models

import (
	"fmt"
	"strings"
)

// BranchRecord is a company branch ("sucursal") as known to the record store
type BranchRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	// CompliancePercentage is the most recent known value (0-100), nil when never measured
	CompliancePercentage *float64 `json:"compliancePercentage,omitempty"`
}

// Label returns the display name, falling back to the id
func (b BranchRecord) Label() string {
	if strings.TrimSpace(b.DisplayName) != "" {
		return b.DisplayName
	}
	return b.ID
}

// Role is the dashboard role of the signed-in user
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleGeneralManager Role = "general_manager"
	RoleBranchManager  Role = "branch_manager"
)

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleGeneralManager, RoleBranchManager:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Scope identifies what a browsing session is allowed to see.
// An empty BranchID means company scope.
type Scope struct {
	CompanyID   string `json:"companyId"`
	CompanyName string `json:"companyName"`
	BranchID    string `json:"branchId,omitempty"`
}

// IsBranchScoped reports whether the session is locked to a single branch
func (s Scope) IsBranchScoped() bool {
	return s.BranchID != ""
}

// ForBranch returns a branch-scoped copy of s
func (s Scope) ForBranch(branchID string) Scope {
	s.BranchID = branchID
	return s
}

// String returns a compact human description for logs
func (s Scope) String() string {
	name := s.CompanyName
	if name == "" {
		name = s.CompanyID
	}
	if s.IsBranchScoped() {
		return fmt.Sprintf("%s/%s", name, s.BranchID)
	}
	return name
}

// NavigationFrame is one entry of the browsing history stack
type NavigationFrame struct {
	FolderID   string `json:"folderId"`
	FolderName string `json:"folderName"`
}
