package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/cloud/download"
	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/constants"
	"github.com/fedesuarez16/opting-sub000/internal/diskspace"
	"github.com/fedesuarez16/opting-sub000/internal/events"
	"github.com/fedesuarez16/opting-sub000/internal/http"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/progress"
)

// newDownloadCmd creates the 'download' command.
func newDownloadCmd() *cobra.Command {
	var (
		folderID string
		dest     string
		workers  int
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the documents of a folder",
		Long: `Download every document in a drive folder through its download link.

Subfolders are not descended into. Documents without a download link are
skipped. Existing local files are overwritten. The download is refused when
the destination filesystem cannot hold the listed document sizes.

Example:
  opting download --folder-id 1AbC --dest ./docs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if folderID == "" {
				return fmt.Errorf("--folder-id is required")
			}
			ctx := cmd.Context()

			return invoke(ctx, GetLogger(), func(src cloud.FolderSource, cfg *config.Config, log *logging.Logger, bus *events.EventBus) error {
				entries, err := src.ListFolderContents(ctx, folderID, cloud.FetchOptions{Force: force})
				if err != nil {
					return explain(err, cfg)
				}

				items, skipped := download.Plan(entries, dest)
				out := cmd.OutOrStdout()
				if skipped > 0 {
					fmt.Fprintf(out, "Skipping %d documents without a download link\n", skipped)
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "No documents to download")
					return nil
				}

				var total int64
				for _, it := range items {
					total += it.Entry.SizeOrZero()
				}
				if err := diskspace.Check(dest, total); err != nil {
					return err
				}

				client, err := http.CreateDownloadClient(cfg)
				if err != nil {
					return fmt.Errorf("failed to configure download client: %w", err)
				}
				dl := download.New(client,
					download.WithWorkers(workers),
					download.WithLogger(log.Named("download")),
					download.WithEventBus(bus),
				)

				ui := progress.NewDownloadUI(len(items))
				results := dl.Run(ctx, items, ui)
				ui.Wait()

				return summarize(out, results)
			})
		},
	}

	cmd.Flags().StringVar(&folderID, "folder-id", "", "Drive folder id (required)")
	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "Destination directory")
	cmd.Flags().IntVarP(&workers, "workers", "w", constants.DownloadWorkers, "Concurrent downloads")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass caches when listing the folder")

	return cmd
}

// summarize prints the per-file failures and totals. It fails when any download failed.
func summarize(w io.Writer, results []download.Result) error {
	var (
		bytes  int64
		failed int
	)
	for _, r := range results {
		bytes += r.Bytes
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "✗ %s: %v\n", r.Item.Entry.Name, r.Err)
		}
	}
	fmt.Fprintf(w, "Downloaded %d of %d documents (%.2f MB)\n",
		len(results)-failed, len(results), float64(bytes)/(1024*1024))
	if failed > 0 {
		return fmt.Errorf("%d downloads failed", failed)
	}
	return nil
}
