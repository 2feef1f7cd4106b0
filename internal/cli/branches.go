package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/matcher"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// newBranchesCmd creates the 'branches' command group.
func newBranchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branches",
		Short: "Inspect branch records",
	}
	cmd.AddCommand(newBranchesListCmd())
	return cmd
}

func newBranchesListCmd() *cobra.Command {
	var (
		sf    scopeFlags
		match bool
		force bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a company's branches with their latest compliance",
		Long: `List the branch records of a company.

With --match, the company's drive folder is resolved and each branch is shown
next to the child folder it matches.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return invoke(ctx, GetLogger(), func(dir directory.Directory, cfg *config.Config, log *logging.Logger) error {
				scope, err := resolveScope(ctx, cfg, dir, log, sf)
				if err != nil {
					return err
				}
				snap, err := dir.Snapshot(ctx, scope.CompanyID)
				if err != nil {
					return err
				}

				branches := snap.Branches()
				if scope.IsBranchScoped() {
					b, ok := snap.Branch(scope.BranchID)
					if !ok {
						return fmt.Errorf("branch %s not found in company %s", scope.BranchID, scope.CompanyID)
					}
					branches = []models.BranchRecord{b}
				}

				var folders map[string]models.RemoteFolderEntry
				if match {
					company := models.Scope{CompanyID: scope.CompanyID, CompanyName: scope.CompanyName}
					err := invokeWith(ctx, cfg, log, func(src cloud.FolderSource) (ferr error) {
						folders, ferr = matchBranchFolders(ctx, src, dir, log, company, snap, force)
						return ferr
					})
					if err != nil {
						return explain(err, cfg)
					}
				}

				return printBranches(cmd.OutOrStdout(), snap, branches, folders, match)
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().BoolVar(&match, "match", false, "Show the drive folder matched to each branch")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass caches and fetch from the drive")
	return cmd
}

// matchBranchFolders lists the company folder and maps branch id to the first
// child folder matching it
func matchBranchFolders(ctx context.Context, src cloud.FolderSource, dir directory.Directory, log *logging.Logger, company models.Scope, snap *directory.Snapshot, force bool) (map[string]models.RemoteFolderEntry, error) {
	folder, err := resolveStart(ctx, src, dir, log, company, force)
	if err != nil {
		return nil, err
	}
	children, err := src.ListFolderContents(ctx, folder.ID, cloud.FetchOptions{Force: force})
	if err != nil {
		return nil, err
	}

	ix := matcher.NewIndex(snap.Branches())
	out := make(map[string]models.RemoteFolderEntry)
	for _, child := range children {
		b, ok := ix.Match(child)
		if !ok {
			continue
		}
		if _, seen := out[b.ID]; !seen {
			out[b.ID] = child
		}
	}
	return out, nil
}

func printBranches(w io.Writer, snap *directory.Snapshot, branches []models.BranchRecord, folders map[string]models.RemoteFolderEntry, match bool) error {
	company := snap.Company()
	fmt.Fprintf(w, "%s (ID: %s) - %d branches\n\n", company.Name, company.ID, len(branches))
	if len(branches) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "ID\tNAME\tCOMPLIANCE"
	if match {
		header += "\tFOLDER"
	}
	fmt.Fprintln(tw, header)
	for _, b := range branches {
		pct := "-"
		if p, ok := snap.CompliancePercentage(b.ID); ok {
			pct = fmt.Sprintf("%.1f%%", p)
		}
		line := fmt.Sprintf("%s\t%s\t%s", b.ID, b.Label(), pct)
		if match {
			folder := "(no folder)"
			if f, ok := folders[b.ID]; ok {
				folder = fmt.Sprintf("%s (ID: %s)", f.Name, f.ID)
			}
			line += "\t" + folder
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}
