// Package source feeds raw sample batches into a pipeline.Sink.
//
// Each source is one producer goroutine: the serial tracking bridge
// (JSON lines over serialmux), native datagrams over UDP, offline pcap
// replay of those datagrams, and a play-mode simulator that turns a
// desktop mouse stream into samples.
package source

import (
	"github.com/banshee-data/spatialpointer/internal/spatial/l1samples"
)

// DecodeCounter is implemented by sinks that keep decode statistics,
// such as *pipeline.Pipeline.
type DecodeCounter interface {
	CountDecode(stats l1samples.DecodeStats)
}
