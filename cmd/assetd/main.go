// Command assetd serves content-addressed assets to game clients over a
// reliable message transport, grounded on the teacher's thin cmd/registry
// entrypoint deferring to a cobra command tree in internal/cmd.
package main

import (
	"fmt"
	"os"

	"github.com/vircadia/assetd/internal/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
