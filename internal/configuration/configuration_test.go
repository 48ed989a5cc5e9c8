package configuration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const minimalConfig = `
version: "0.1"
storage:
  rootdirectory: /var/lib/assetd
`

func TestParseAppliesDefaults(t *testing.T) {
	config, err := Parse(strings.NewReader(minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "/var/lib/assetd", config.Storage.RootDirectory)
	require.Equal(t, "/var/lib/assetd/bake-scratch", config.Storage.BakeScratchDirectory)
	require.EqualValues(t, DefaultMaxUploadSize, config.Assets.MaxUploadSize)
	require.Equal(t, DefaultTransferWorkers, config.Assets.TransferWorkers)
	require.Equal(t, Loglevel("info"), config.Log.Level)
}

func TestParseRequiresRootDirectory(t *testing.T) {
	_, err := Parse(strings.NewReader(`version: "0.1"` + "\n"))
	require.Error(t, err)
}

func TestParseRejectsUnknownVersion(t *testing.T) {
	_, err := Parse(strings.NewReader("version: \"9.9\"\nstorage:\n  rootdirectory: /tmp\n"))
	require.Error(t, err)
}

func TestLoglevelRejectsInvalid(t *testing.T) {
	_, err := Parse(strings.NewReader("version: \"0.1\"\nstorage:\n  rootdirectory: /tmp\nlog:\n  level: loud\n"))
	require.Error(t, err)
}
