// Package cmd implements the assetd command-line interface: the serve and
// garbage-collect subcommands, grounded on the teacher's registry/root.go
// RootCmd/ServeCmd/GCCmd split (there, registry serve / registry
// garbage-collect; here, assetd serve / assetd garbage-collect).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vircadia/assetd/version"
)

var showVersion bool

func init() {
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(GCCmd)
	GCCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "report orphaned content without removing it")
	RootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
}

// RootCmd is the main command for the assetd binary.
var RootCmd = &cobra.Command{
	Use:   "assetd",
	Short: "`assetd` serves content-addressed assets over a reliable message transport",
	Long:  "`assetd` serves content-addressed assets over a reliable message transport",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			version.PrintVersion()
			return
		}
		// nolint:errcheck
		cmd.Usage()
	},
}

var dryRun bool

func resolveConfiguration(args []string) (*os.File, error) {
	var configurationPath string

	if len(args) > 0 {
		configurationPath = args[0]
	} else if os.Getenv("ASSETD_CONFIGURATION_PATH") != "" {
		configurationPath = os.Getenv("ASSETD_CONFIGURATION_PATH")
	}

	if configurationPath == "" {
		return nil, fmt.Errorf("configuration path unspecified")
	}

	fp, err := os.Open(configurationPath)
	if err != nil {
		return nil, err
	}
	return fp, nil
}
