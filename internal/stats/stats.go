// Package stats implements periodic sampling of per-connection transport
// counters, grounded on AssetServer::sendStatsPacket in original_source:
// the original periodically packages up per-connection byte/packet counts
// and pushes them to the domain server for monitoring. The underlying
// transport connection and its raw counters are an external collaborator
// (Source below); this package only owns the sampling loop and the metrics
// it publishes.
package stats

import (
	"context"
	"time"

	"github.com/docker/go-metrics"

	internalmetrics "github.com/vircadia/assetd/internal/metrics"
	"github.com/vircadia/assetd/internal/session"
)

// Counters is one sender's transport-level counters as of the sampling
// instant.
type Counters struct {
	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
}

// Source supplies the current per-sender counters. The concrete transport
// implementation provides this; it is out of scope here.
type Source interface {
	ConnectionCounters() map[session.SenderID]Counters
}

var (
	bytesSentGauge       = internalmetrics.TransportNamespace.NewLabeledGauge("bytes_sent", "Bytes sent per connection", metrics.Bytes, "sender")
	bytesReceivedGauge   = internalmetrics.TransportNamespace.NewLabeledGauge("bytes_received", "Bytes received per connection", metrics.Bytes, "sender")
	packetsSentGauge     = internalmetrics.TransportNamespace.NewLabeledGauge("packets_sent", "Packets sent per connection", metrics.Total, "sender")
	packetsReceivedGauge = internalmetrics.TransportNamespace.NewLabeledGauge("packets_received", "Packets received per connection", metrics.Total, "sender")
)

// Sampler periodically reads Source and republishes the result as
// per-connection gauges.
type Sampler struct {
	source   Source
	interval time.Duration
}

// NewSampler builds a Sampler that polls source every interval once Run is
// called.
func NewSampler(source Source, interval time.Duration) *Sampler {
	return &Sampler{source: source, interval: interval}
}

// Run samples source on every tick until ctx is canceled, mirroring
// health.Poll's ticker-and-select shape.
func (s *Sampler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	for sender, c := range s.source.ConnectionCounters() {
		label := string(sender)
		bytesSentGauge.WithValues(label).Set(float64(c.BytesSent))
		bytesReceivedGauge.WithValues(label).Set(float64(c.BytesReceived))
		packetsSentGauge.WithValues(label).Set(float64(c.PacketsSent))
		packetsReceivedGauge.WithValues(label).Set(float64(c.PacketsReceived))
	}
}
