// Package configuration defines the on-disk, YAML-encoded configuration of
// the assetd process: where content lives, how large an upload may be, and
// how the process logs. It does not cover the few settings the server
// receives from an external settings source at runtime (see
// internal/settings) — those are not process configuration, they are
// handed to the running server by its deployment environment.
package configuration

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v2"
)

// Configuration is the root of assetd's YAML configuration file. Values
// come from the YAML document only; environment variables are not read.
type Configuration struct {
	// Version is the configuration format version. Only "0.1" is
	// recognized today.
	Version Version `yaml:"version"`

	// Log configures the logging subsystem.
	Log Log `yaml:"log"`

	// Storage configures where content and mappings are persisted.
	Storage Storage `yaml:"storage"`

	// Assets configures asset-server-specific limits, independent of where
	// bytes are stored.
	Assets Assets `yaml:"assets"`

	// Debug configures the auxiliary HTTP server exposing /debug/health and
	// /metrics. The asset transport itself is not HTTP; this endpoint exists
	// purely for operators, mirroring the teacher's HTTP.Debug.Addr.
	Debug Debug `yaml:"debug,omitempty"`
}

// Debug configures the operator-facing debug/metrics HTTP server.
type Debug struct {
	// Addr is the address the debug server listens on, e.g. ":5001". Empty
	// disables the debug server entirely.
	Addr string `yaml:"addr,omitempty"`
}

// Version is a "major.minor" configuration format version.
type Version string

// CurrentVersion is the configuration format this build understands.
const CurrentVersion = Version("0.1")

// UnmarshalYAML implements yaml.Unmarshaler, validating that the version is
// the one this build understands.
func (v *Version) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if Version(s) != CurrentVersion {
		return fmt.Errorf("configuration: unsupported version %q, expected %q", s, CurrentVersion)
	}
	*v = Version(s)
	return nil
}

// Log configures the logging subsystem.
type Log struct {
	// Level is the granularity at which assetd logs operations.
	Level Loglevel `yaml:"level,omitempty"`

	// Formatter overrides the default text formatter. Options are "text"
	// and "json".
	Formatter string `yaml:"formatter,omitempty"`

	// Fields allows static key/value pairs to be attached to every log
	// entry, useful for tagging a deployment or region.
	Fields map[string]interface{} `yaml:"fields,omitempty"`
}

// Loglevel is the level at which assetd operations are logged: error,
// warn, info, or debug.
type Loglevel string

// UnmarshalYAML implements yaml.Unmarshaler, lowercasing and validating the
// level.
func (l *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	s = strings.ToLower(s)
	switch s {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("configuration: invalid loglevel %q, must be one of [error, warn, info, debug]", s)
	}
	*l = Loglevel(s)
	return nil
}

// Storage configures the on-disk layout backing the content store and
// mapping store.
type Storage struct {
	// RootDirectory is the directory holding map.json and the files/
	// subdirectory. Created on startup if absent.
	RootDirectory string `yaml:"rootdirectory"`

	// BakeScratchDirectory names a directory for in-progress bake outputs.
	// Defaults to a "bake-scratch" subdirectory of RootDirectory. The bake
	// worker keeps its outputs in memory and does not read this setting.
	BakeScratchDirectory string `yaml:"bakescratchdirectory,omitempty"`
}

// Assets configures limits enforced by the transfer pool and bake worker,
// independent of storage backend.
type Assets struct {
	// MaxUploadSize caps the size in bytes of a single uploaded asset.
	// Uploads larger than this are rejected with AssetTooLarge before any
	// bytes are written. Zero means the built-in default (1 GiB) applies.
	MaxUploadSize int64 `yaml:"maxuploadsize,omitempty"`

	// TransferWorkers is the size of the bounded worker pool used for
	// GET/UPLOAD jobs. Zero means the built-in default (50) applies.
	TransferWorkers int `yaml:"transferworkers,omitempty"`
}

// DefaultMaxUploadSize is used when Assets.MaxUploadSize is unset.
const DefaultMaxUploadSize = 1 << 30

// DefaultTransferWorkers is used when Assets.TransferWorkers is unset.
const DefaultTransferWorkers = 50

// Parse decodes a YAML configuration document from rd.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("configuration: read: %w", err)
	}

	config := new(Configuration)
	if err := yaml.Unmarshal(in, config); err != nil {
		return nil, fmt.Errorf("configuration: parse: %w", err)
	}

	if config.Storage.RootDirectory == "" {
		return nil, fmt.Errorf("configuration: storage.rootdirectory is required")
	}
	if config.Storage.BakeScratchDirectory == "" {
		config.Storage.BakeScratchDirectory = config.Storage.RootDirectory + "/bake-scratch"
	}
	if config.Assets.MaxUploadSize <= 0 {
		config.Assets.MaxUploadSize = DefaultMaxUploadSize
	}
	if config.Assets.TransferWorkers <= 0 {
		config.Assets.TransferWorkers = DefaultTransferWorkers
	}
	if config.Log.Level == "" {
		config.Log.Level = Loglevel("info")
	}

	return config, nil
}
