// Command pcap-replay feeds captured tracking-bridge datagrams through the
// pointer pipeline and prints the resulting counters. Delivery is ticked
// once after every batch, then until every slot has been released.
//
// Reading pcap files needs the 'pcap' build tag (libpcap).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/spatialpointer/internal/config"
	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/spatial/l5device"
	"github.com/banshee-data/spatialpointer/internal/spatial/pipeline"
	"github.com/banshee-data/spatialpointer/internal/spatial/source"
	"github.com/banshee-data/spatialpointer/internal/tracestore"
)

// maxDrainTicks bounds the final drain; a slot whose raw id vanished
// without a terminal phase never releases.
const maxDrainTicks = 1024

// Summary is printed as JSON when the replay finishes.
type Summary struct {
	PCAP      source.PCAPStats `json:"pcap"`
	Pipeline  pipeline.Stats   `json:"pipeline"`
	Delivered int              `json:"delivered"`
	Stuck     int              `json:"stuck_slots"`
	Session   string           `json:"session,omitempty"`
}

// tickingSink ticks the pipeline after every batch it forwards.
type tickingSink struct {
	pipe      *pipeline.Pipeline
	delivered int
}

func (s *tickingSink) OnBatch(samples []spatial.RawSample) {
	s.pipe.OnBatch(samples)
	s.delivered += len(s.pipe.Tick())
}

// drain ticks until no slot is live or maxDrainTicks is reached.
func (s *tickingSink) drain() {
	for i := 0; i < maxDrainTicks && s.pipe.Stats().LiveSlots > 0; i++ {
		s.delivered += len(s.pipe.Tick())
	}
}

func main() {
	var (
		pcapPath   = flag.String("pcap", "", "Path to PCAP file (required)")
		udpPort    = flag.Int("port", 0, "UDP port of the tracking bridge (0 = any)")
		speed      = flag.Float64("speed", 0, "Replay speed multiplier (0 = as fast as possible)")
		configPath = flag.String("config", "", "Pointer configuration JSON (default: built-in defaults)")
		traceDB    = flag.String("trace-db", "", "Record the replay to this trace database")
	)
	flag.Parse()
	if *pcapPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -pcap capture.pcap [options]\n\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	pcfg := pipeline.DefaultConfig()
	if *configPath != "" {
		cfg, err := config.LoadPointerConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		if pcfg, err = pipeline.ConfigFromPointer(cfg); err != nil {
			log.Fatalf("invalid pipeline config: %v", err)
		}
	}

	device := l5device.New(pcfg.PoolCapacity)
	pipe := pipeline.New(pcfg, device)
	sink := &tickingSink{pipe: pipe}

	var summary Summary
	if *traceDB != "" {
		store, err := tracestore.Open(*traceDB)
		if err != nil {
			log.Fatalf("failed to open trace store: %v", err)
		}
		defer store.Close()
		if summary.Session, err = store.StartSession("pcap-replay "+*pcapPath, "{}", time.Now()); err != nil {
			log.Fatalf("failed to start trace session: %v", err)
		}
		pipe.AddRecorder(store)
		defer func() {
			if err := store.EndSession(time.Now()); err != nil {
				log.Printf("failed to end trace session: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := source.ReplayPCAP(ctx, source.PCAPConfig{
		Path:    *pcapPath,
		UDPPort: *udpPort,
		Sink:    sink,
		Speed:   *speed,
	})
	if err != nil {
		log.Printf("replay stopped: %v", err)
	}
	sink.drain()

	summary.PCAP = stats
	summary.Pipeline = pipe.Stats()
	summary.Delivered = sink.delivered
	summary.Stuck = summary.Pipeline.LiveSlots

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("failed to write summary: %v", err)
	}
}
