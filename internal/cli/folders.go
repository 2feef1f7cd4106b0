package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fedesuarez16/opting-sub000/internal/browser"
	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// listFlags are shared by the listing subcommands
type listFlags struct {
	force  bool
	asJSON bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.force, "force", false, "Bypass caches and fetch from the drive")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print entries as JSON")
}

// newFoldersCmd creates the 'folders' command group.
func newFoldersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List and resolve drive folders",
		Long: `Drive folder commands.

Commands:
  roots   - List the drive's top-level folders
  list    - List the contents of a folder
  search  - Search folders by name
  resolve - Resolve the start folder of a company or branch`,
	}

	cmd.AddCommand(newFoldersRootsCmd())
	cmd.AddCommand(newFoldersListCmd())
	cmd.AddCommand(newFoldersSearchCmd())
	cmd.AddCommand(newFoldersResolveCmd())
	return cmd
}

func newFoldersRootsCmd() *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "roots",
		Short: "List top-level drive folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return invoke(ctx, GetLogger(), func(src cloud.FolderSource, cfg *config.Config) error {
				entries, err := src.ListRootFolders(ctx, cloud.FetchOptions{Force: lf.force})
				if err != nil {
					return explain(err, cfg)
				}
				return printEntries(cmd.OutOrStdout(), entries, lf.asJSON)
			})
		},
	}
	lf.register(cmd)
	return cmd
}

func newFoldersListCmd() *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "list <folder-id>",
		Short: "List the contents of a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return invoke(ctx, GetLogger(), func(src cloud.FolderSource, cfg *config.Config) error {
				entries, err := src.ListFolderContents(ctx, args[0], cloud.FetchOptions{Force: lf.force})
				if err != nil {
					return explain(err, cfg)
				}
				return printEntries(cmd.OutOrStdout(), entries, lf.asJSON)
			})
		},
	}
	lf.register(cmd)
	return cmd
}

func newFoldersSearchCmd() *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Search folders by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return invoke(ctx, GetLogger(), func(src cloud.FolderSource, cfg *config.Config) error {
				entries, err := src.SearchFoldersByName(ctx, args[0], cloud.FetchOptions{Force: lf.force})
				if err != nil {
					return explain(err, cfg)
				}
				return printEntries(cmd.OutOrStdout(), entries, lf.asJSON)
			})
		},
	}
	lf.register(cmd)
	return cmd
}

func newFoldersResolveCmd() *cobra.Command {
	var (
		sf    scopeFlags
		force bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the start folder of a company or branch",
		Long: `Resolve the drive folder a browsing session would start from.

Company folders are matched by name against the root folders first, then
through the drive search. Branch folders are searched by the branch's display
name and id, then matched among the company folder's children.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return invoke(ctx, GetLogger(), func(src cloud.FolderSource, dir directory.Directory, cfg *config.Config, log *logging.Logger) error {
				scope, err := resolveScope(ctx, cfg, dir, log, sf)
				if err != nil {
					return err
				}
				folder, err := resolveStart(ctx, src, dir, log, scope, force)
				if err != nil {
					return explain(err, cfg)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "📁 %s (ID: %s)\n", folder.Name, folder.ID)
				fmt.Fprintf(out, "  Scope: %s\n", scope)
				return nil
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Bypass caches and fetch from the drive")
	return cmd
}

func resolveStart(ctx context.Context, src cloud.FolderSource, dir directory.Directory, log *logging.Logger, scope models.Scope, force bool) (models.RemoteFolderEntry, error) {
	snap, err := dir.Snapshot(ctx, scope.CompanyID)
	if err != nil {
		log.Debug().Err(err).Str("company", scope.CompanyID).Msg("no branch records for company")
		snap = directory.EmptySnapshot(directory.Company{ID: scope.CompanyID, Name: scope.CompanyName})
	}
	return browser.NewResolver(src, log.Named("resolver")).Start(ctx, scope, snap, cloud.FetchOptions{Force: force})
}

// explain adds the user-facing recovery hint to drive errors
func explain(err error, cfg *config.Config) error {
	switch browser.KindOf(err) {
	case browser.ErrorUnauthenticated:
		return fmt.Errorf("%w\nSign in to the drive again: %s", err, cfg.Drive.LoginLink())
	case browser.ErrorNotFound:
		var nf *browser.NotFoundError
		if errors.As(err, &nf) && len(nf.RootFolders) > 0 {
			return fmt.Errorf("%w\nAvailable folders: %s", err, strings.Join(nf.RootFolders, ", "))
		}
	}
	return err
}

// printEntries writes entries one per line, or as a JSON array
func printEntries(w io.Writer, entries []models.RemoteFolderEntry, asJSON bool) error {
	if asJSON {
		type row struct {
			Kind string `json:"kind"`
			models.RemoteFolderEntry
		}
		rows := make([]row, len(entries))
		for i, e := range entries {
			rows[i] = row{Kind: e.Kind.String(), RemoteFolderEntry: e}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "(no entries)")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(w, formatEntry(e))
	}
	return nil
}

func formatEntry(e models.RemoteFolderEntry) string {
	if e.IsFolder() {
		if e.ChildCount != nil {
			return fmt.Sprintf("📁 %s (%d items, ID: %s)", e.Name, *e.ChildCount, e.ID)
		}
		return fmt.Sprintf("📁 %s (ID: %s)", e.Name, e.ID)
	}
	sizeMB := float64(e.SizeOrZero()) / (1024 * 1024)
	return fmt.Sprintf("📄 %s (%.2f MB, ID: %s)", e.Name, sizeMB, e.ID)
}
