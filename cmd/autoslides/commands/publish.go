package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spherical/autoslides/cmd/autoslides/ui"
	"github.com/spherical/autoslides/internal/pipeline"
	"github.com/spherical/autoslides/internal/publish"
)

var (
	publishManifest string
	publishDryRun   bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the decks recorded in a manifest",
	Long: `Publish uploads every successful deck of an earlier run to its brand's
Drive folder, replacing any file with the same name, and records the results
in the manifest.

Example:
  autoslides publish --manifest Temp/manifest-<run>.json`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishManifest, "manifest", "m", "", "manifest written by run (required)")
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "upload to an in-memory store instead of Drive")
	_ = publishCmd.MarkFlagRequired("manifest")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	manifest, err := pipeline.ReadManifest(publishManifest)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	store, err := newObjectStore(ctx, appCfg, publishDryRun)
	if err != nil {
		return err
	}

	seedDryRunFolders(store, manifest.Entries)
	publisher := publish.NewPublisher(store, logger, publish.WithVentureSubfolders(appCfg.Drive.VentureSubfolders))
	results := publisher.PublishAll(ctx, manifest.Entries)
	manifest.Published = results

	if _, err := pipeline.WriteManifest(filepath.Dir(publishManifest), manifest); err != nil {
		return err
	}

	if len(results) == 0 {
		ui.Warning("No decks to publish")
		return nil
	}
	printPublished(results)

	var failed int
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(results))
	}
	ui.Success("Published %d decks", len(results))
	return nil
}
