package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fedesuarez16/opting-sub000/internal/browser"
	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/events"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/models"
	"github.com/fedesuarez16/opting-sub000/internal/tui"
)

// newBrowseCmd creates the 'browse' command.
func newBrowseCmd() *cobra.Command {
	var sf scopeFlags

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse a company's document folders",
		Long: `Open the interactive folder browser.

The session starts at the company folder, or at the branch folder when a
branch is given or the session token is a branch manager's. Opening a child
folder that matches a branch switches to that branch's view.

The terminal is taken over while browsing, so logs go to the log file in
the opting log directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := config.EnsureLogDirectory(); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
			log, closer := logging.NewFileLogger("browse", config.LogFilePath("browse"))
			defer closer.Close()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			return invokeWith(ctx, cfg, log, func(src cloud.FolderSource, dir directory.Directory, bus *events.EventBus) error {
				scope, err := resolveScope(ctx, cfg, dir, log, sf)
				if err != nil {
					return err
				}

				failures := bus.Subscribe(events.EventFetchFailed)
				go func() {
					for ev := range failures {
						if f, ok := ev.(*events.FetchFailedEvent); ok {
							log.Warn().
								Str("session", f.Session).
								Str("op", f.Operation).
								Str("kind", f.Kind).
								Msg(f.Message)
						}
					}
				}()

				log.Info().Str("scope", scope.String()).Str("backend", cfg.Drive.Backend).Msg("browse session started")
				return tui.Run(ctx, tui.Options{
					Scope:    scope,
					LoginURL: cfg.Drive.LoginLink(),
					Logger:   log.Named("tui"),
					NewController: func(session models.Scope, onBranch func(browser.BranchSelection)) *browser.Controller {
						return browser.NewController(src, dir,
							browser.WithLogger(log.Named("browser")),
							browser.WithEventBus(bus, session.String()),
							browser.WithBranchSelectedHandler(onBranch),
						)
					},
				})
			})
		},
	}

	sf.register(cmd)
	return cmd
}
