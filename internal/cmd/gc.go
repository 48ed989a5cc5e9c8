package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vircadia/assetd/internal/configuration"
	"github.com/vircadia/assetd/internal/contentstore"
	"github.com/vircadia/assetd/internal/dcontext"
	"github.com/vircadia/assetd/internal/mapping"
	"github.com/vircadia/assetd/internal/orphan"
	"github.com/vircadia/assetd/internal/storagedriver/filesystem"
	"github.com/vircadia/assetd/version"
)

// GCCmd is the cobra command that runs a one-shot orphan sweep over a
// storage root, grounded on the teacher's GCCmd in registry/root.go (there,
// storage.MarkAndSweep over manifests and layers; here, the same
// mark-and-sweep shape applied to asset mappings and content).
var GCCmd = &cobra.Command{
	Use:   "garbage-collect <config>",
	Short: "`garbage-collect` deletes content not referenced by any mapping",
	Long:  "`garbage-collect` deletes content not referenced by any mapping",
	Run: func(cmd *cobra.Command, args []string) {
		fp, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			// nolint:errcheck
			cmd.Usage()
			os.Exit(1)
		}
		defer fp.Close()

		config, err := configuration.Parse(fp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error parsing configuration: %v\n", err)
			os.Exit(1)
		}

		ctx := dcontext.WithVersion(dcontext.Background(), version.Version())
		ctx, err = configureLogging(ctx, config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error configuring logging: %v\n", err)
			os.Exit(1)
		}

		driver, err := filesystem.New(config.Storage.RootDirectory)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open storage root %s: %v\n", config.Storage.RootDirectory, err)
			os.Exit(1)
		}

		content := contentstore.New(driver)
		mappings := mapping.New(driver, nil)
		if err := mappings.Load(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load mappings: %v\n", err)
			os.Exit(1)
		}

		inUse := mappings.AllHashesInUse()

		if dryRun {
			hashes, err := content.ListAllHashes(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to list content: %v\n", err)
				os.Exit(1)
			}
			var orphaned int
			for _, h := range hashes {
				if inUse[h] {
					continue
				}
				orphaned++
				logrus.WithField("hash", h).Info("garbage-collect: would remove orphaned content")
			}
			logrus.WithFields(logrus.Fields{
				"examined": len(hashes),
				"orphaned": orphaned,
			}).Info("garbage-collect: dry run complete")
			return
		}

		collector := orphan.New(content)
		stats, err := collector.SweepStartup(ctx, inUse)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to garbage collect: %v\n", err)
			os.Exit(1)
		}
		logrus.WithFields(logrus.Fields{
			"examined": stats.Examined,
			"removed":  stats.Removed,
			"errors":   stats.Errors,
		}).Info("garbage-collect: complete")
	},
}
