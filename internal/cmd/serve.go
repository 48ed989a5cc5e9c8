package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vircadia/assetd/health"
	"github.com/vircadia/assetd/internal/configuration"
	"github.com/vircadia/assetd/internal/dcontext"
	"github.com/vircadia/assetd/internal/server"
	"github.com/vircadia/assetd/version"
)

// ServeCmd is the cobra command that runs the asset server until signaled.
var ServeCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "`serve` runs the asset server",
	Long:  "`serve` runs the asset server",
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

		srv, err := server.New(config)
		if err != nil {
			logrus.Fatalln(err)
		}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := srv.Start(runCtx); err != nil {
			logrus.Fatalln(err)
		}

		health.RegisterFunc("storage", srv.HealthCheck)
		configureDebugServer(config)

		logrus.WithField("rootdirectory", config.Storage.RootDirectory).Info("assetd: serving")

		waitForShutdownSignal()
		logrus.Info("assetd: shutting down")
		cancel()
		srv.Shutdown()
	},
}

// configureDebugServer stands up the operator-facing /debug/health and
// /metrics HTTP endpoints, grounded on the teacher's configureDebugServer in
// registry/registry.go. The asset transport itself never speaks HTTP; this
// server exists purely for monitoring.
func configureDebugServer(config *configuration.Configuration) {
	if config.Debug.Addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/health", health.StatusHandler)
	mux.Handle("/metrics", metrics.Handler())

	go func(addr string) {
		logrus.Infof("assetd: debug server listening on %v", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.Fatalf("assetd: debug server: %v", err)
		}
	}(config.Debug.Addr)
}

func waitForShutdownSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
