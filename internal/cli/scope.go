package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fedesuarez16/opting-sub000/internal/auth"
	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

var errNoCompany = errors.New("--company or --company-name is required without a session token")

// scopeFlags selects what to browse
type scopeFlags struct {
	companyID   string
	companyName string
	branchID    string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.companyID, "company", "", "Company id")
	cmd.Flags().StringVar(&f.companyName, "company-name", "", "Company name (drive folder name)")
	cmd.Flags().StringVar(&f.branchID, "branch", "", "Branch id (browse a single branch)")
}

func (f scopeFlags) requested() models.Scope {
	return models.Scope{CompanyID: f.companyID, CompanyName: f.companyName, BranchID: f.branchID}
}

// resolveScope applies the session's role to the requested scope. Without a
// session token the requested scope is used as is. A missing company name is
// filled in from the record store.
func resolveScope(ctx context.Context, cfg *config.Config, dir directory.Directory, log *logging.Logger, f scopeFlags) (models.Scope, error) {
	scope := f.requested()

	if cfg.Session.Token != "" {
		verifier, err := auth.NewVerifier(cfg.Session.SigningKey)
		if err != nil {
			return models.Scope{}, err
		}
		claims, err := verifier.Verify(cfg.Session.Token)
		if err != nil {
			return models.Scope{}, err
		}
		scope, err = claims.Scope(scope)
		if err != nil {
			return models.Scope{}, err
		}
		log.Debug().Str("role", claims.Role).Str("scope", scope.String()).Msg("session scope applied")
	} else if scope.CompanyID == "" && scope.CompanyName == "" {
		return models.Scope{}, errNoCompany
	}

	if scope.CompanyName == "" && scope.CompanyID != "" && dir != nil {
		snap, err := dir.Snapshot(ctx, scope.CompanyID)
		switch {
		case errors.Is(err, directory.ErrCompanyNotFound):
			// the company id doubles as the folder name
			log.Warn().Str("company", scope.CompanyID).Msg("company not in the record store")
		case err != nil:
			return models.Scope{}, fmt.Errorf("failed to look up company %s: %w", scope.CompanyID, err)
		default:
			scope.CompanyName = snap.Company().Name
		}
	}
	return scope, nil
}
