package browser

import (
	"context"
	"strings"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/matcher"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// Resolver finds the drive folder a browsing session starts from.
type Resolver struct {
	source cloud.FolderSource
	logger *logging.Logger
}

// NewResolver creates a resolver over source.
func NewResolver(source cloud.FolderSource, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Resolver{source: source, logger: logger}
}

func folderNames(entries []models.RemoteFolderEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsFolder() {
			names = append(names, e.Name)
		}
	}
	return names
}

// CompanyFolder resolves the root folder of a company.
//
// Root folders are tried first, exact name match then containment either way.
// Only then is the drive's name search consulted, with the same matching.
// An unauthenticated session aborts immediately. Any other listing failure is
// absorbed and the result is a *NotFoundError wrapping it.
func (r *Resolver) CompanyFolder(ctx context.Context, companyName string, opts cloud.FetchOptions) (models.RemoteFolderEntry, error) {
	e, _, err := r.companyFolder(ctx, companyName, opts)
	return e, err
}

func (r *Resolver) companyFolder(ctx context.Context, companyName string, opts cloud.FetchOptions) (models.RemoteFolderEntry, []string, error) {
	var cause error

	roots, err := r.source.ListRootFolders(ctx, opts)
	switch {
	case cloud.IsUnauthenticated(err):
		return models.RemoteFolderEntry{}, nil, err
	case err != nil:
		r.logger.Warn().Err(err).Str("company", companyName).Msg("root folder listing failed, trying search")
		cause = err
	}
	rootNames := folderNames(roots)

	if e, tier, ok := matcher.FindFolder(companyName, roots); ok {
		r.logger.Debug().Str("company", companyName).Str("folder_id", e.ID).Stringer("tier", tier).Msg("company folder found in root listing")
		return e, rootNames, nil
	}

	found, err := r.source.SearchFoldersByName(ctx, companyName, opts)
	switch {
	case cloud.IsUnauthenticated(err):
		return models.RemoteFolderEntry{}, rootNames, err
	case err != nil:
		r.logger.Warn().Err(err).Str("company", companyName).Msg("folder search failed")
		cause = err
	}
	if e, tier, ok := matcher.FindFolder(companyName, found); ok {
		r.logger.Debug().Str("company", companyName).Str("folder_id", e.ID).Stringer("tier", tier).Msg("company folder found by search")
		return e, rootNames, nil
	}

	return models.RemoteFolderEntry{}, rootNames, &NotFoundError{Name: companyName, RootFolders: rootNames, Err: cause}
}

// BranchFolder resolves the folder of a single branch.
//
// The drive is searched by the branch's display name, then by its id. When both
// miss and the company is known, the company folder's children are matched
// against the branch.
func (r *Resolver) BranchFolder(ctx context.Context, scope models.Scope, snap *directory.Snapshot, opts cloud.FetchOptions) (models.RemoteFolderEntry, error) {
	branch, ok := snap.Branch(scope.BranchID)
	if !ok {
		branch = models.BranchRecord{ID: scope.BranchID}
	}

	var (
		queries []string
		cause   error
	)
	if name := strings.TrimSpace(branch.DisplayName); name != "" && !matcher.Equal(name, branch.ID) {
		queries = append(queries, name)
	}
	queries = append(queries, branch.ID)

	for _, q := range queries {
		found, err := r.source.SearchFoldersByName(ctx, q, opts)
		switch {
		case cloud.IsUnauthenticated(err):
			return models.RemoteFolderEntry{}, err
		case err != nil:
			r.logger.Warn().Err(err).Str("query", q).Msg("branch folder search failed")
			cause = err
			continue
		}
		if e, tier, ok := matcher.FindFolder(q, found); ok {
			r.logger.Debug().Str("branch", branch.ID).Str("folder_id", e.ID).Stringer("tier", tier).Msg("branch folder found by search")
			return e, nil
		}
	}

	var rootNames []string
	if companyName := scope.CompanyName; companyName != "" {
		company, roots, err := r.companyFolder(ctx, companyName, opts)
		rootNames = roots
		switch {
		case cloud.IsUnauthenticated(err):
			return models.RemoteFolderEntry{}, err
		case err == nil:
			children, err := r.source.ListFolderContents(ctx, company.ID, opts)
			if cloud.IsUnauthenticated(err) {
				return models.RemoteFolderEntry{}, err
			}
			if err != nil {
				cause = err
			}
			for _, child := range children {
				if _, ok := matcher.MatchBranch(child, []models.BranchRecord{branch}); ok {
					r.logger.Debug().Str("branch", branch.ID).Str("folder_id", child.ID).Msg("branch folder found under company folder")
					return child, nil
				}
			}
		}
	}

	return models.RemoteFolderEntry{}, &NotFoundError{Name: branch.Label(), RootFolders: rootNames, Err: cause}
}

// Start resolves the start folder for scope.
func (r *Resolver) Start(ctx context.Context, scope models.Scope, snap *directory.Snapshot, opts cloud.FetchOptions) (models.RemoteFolderEntry, error) {
	if scope.IsBranchScoped() {
		return r.BranchFolder(ctx, scope, snap, opts)
	}
	name := scope.CompanyName
	if name == "" {
		name = snap.Company().Name
	}
	if name == "" {
		name = scope.CompanyID
	}
	return r.CompanyFolder(ctx, name, opts)
}
