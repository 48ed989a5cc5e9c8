// Package settings implements the one-shot bootstrap step: fetching
// assets_path and max_bandwidth from the domain-controller settings source
// before the server starts serving requests. Grounded on
// AssetServer::completeSetup in original_source, which blocks startup on
// this same JSON payload; the concrete RPC to the settings source is an
// external collaborator represented here only by the SettingsFetcher
// interface, per spec.md's explicit note that bootstrapping is "described
// only at the interface."
package settings

import (
	"context"
	"fmt"
)

// RawSettings is the domain-settings payload as fetched, before validation.
// AssetsPath may be relative or absolute; MaxBandwidthMbps is optional (zero
// means unset/unlimited).
type RawSettings struct {
	AssetsPath       string
	MaxBandwidthMbps float64
}

// SettingsFetcher is the external collaborator that retrieves the raw
// settings payload, e.g. over a domain-controller RPC. Supplying a fake
// implementation lets the bootstrap sequence be tested without a live
// settings source.
type SettingsFetcher interface {
	FetchSettings(ctx context.Context) (RawSettings, error)
}

// ServerConfig is the validated, ready-to-use result of bootstrapping: a
// plain value constructed once at boot and passed into every component that
// needs it, rather than a process-wide singleton (per spec.md §9's Design
// Note on global state).
type ServerConfig struct {
	AssetsPath       string
	MaxBandwidthMbps float64
}

// Bootstrap fetches and validates the domain settings payload. AssetsPath
// must be non-empty; MaxBandwidthMbps must be zero (unset) or positive.
func Bootstrap(ctx context.Context, fetch SettingsFetcher) (ServerConfig, error) {
	raw, err := fetch.FetchSettings(ctx)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("settings: fetch: %w", err)
	}

	if raw.AssetsPath == "" {
		return ServerConfig{}, fmt.Errorf("settings: assets_path is required")
	}
	if raw.MaxBandwidthMbps < 0 {
		return ServerConfig{}, fmt.Errorf("settings: max_bandwidth must not be negative, got %v", raw.MaxBandwidthMbps)
	}

	return ServerConfig{
		AssetsPath:       raw.AssetsPath,
		MaxBandwidthMbps: raw.MaxBandwidthMbps,
	}, nil
}
