// Package metrics declares the Prometheus namespaces assetd's components
// register counters and gauges under.
package metrics

import "github.com/docker/go-metrics"

// NamespacePrefix is the namespace prefix of every assetd metric.
const NamespacePrefix = "assetd"

var (
	// StorageNamespace covers content store and mapping store operations.
	StorageNamespace = metrics.NewNamespace(NamespacePrefix, "storage", nil)

	// BakeNamespace covers bake queue and bake worker operations.
	BakeNamespace = metrics.NewNamespace(NamespacePrefix, "bake", nil)

	// TransferNamespace covers the transfer pool's GET/UPLOAD job handling.
	TransferNamespace = metrics.NewNamespace(NamespacePrefix, "transfer", nil)

	// TransportNamespace covers per-connection transport counters sampled
	// by internal/stats.
	TransportNamespace = metrics.NewNamespace(NamespacePrefix, "transport", nil)
)

func init() {
	metrics.Register(StorageNamespace)
	metrics.Register(BakeNamespace)
	metrics.Register(TransferNamespace)
	metrics.Register(TransportNamespace)
}
