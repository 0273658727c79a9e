// Command pointerd runs the pointer event pipeline: it reads raw samples
// from the tracking bridge (serial and/or UDP), delivers canonical events
// to a virtual device once per frame and serves debug and gRPC surfaces.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/spatialpointer/internal/config"
	"github.com/banshee-data/spatialpointer/internal/monitoring"
	"github.com/banshee-data/spatialpointer/internal/serialmux"
	"github.com/banshee-data/spatialpointer/internal/spatial/l5device"
	"github.com/banshee-data/spatialpointer/internal/spatial/monitor"
	"github.com/banshee-data/spatialpointer/internal/spatial/pipeline"
	"github.com/banshee-data/spatialpointer/internal/spatial/rpc"
	"github.com/banshee-data/spatialpointer/internal/spatial/source"
	"github.com/banshee-data/spatialpointer/internal/timeutil"
	"github.com/banshee-data/spatialpointer/internal/tracestore"
	"github.com/banshee-data/spatialpointer/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the JSON configuration file")
	serialPort  = flag.String("serial", "", "Serial port of the tracking bridge (overrides config)")
	udpListen   = flag.String("udp", "", "UDP listen address for sample batches (overrides config)")
	traceDB     = flag.String("trace-db", "", "sqlite trace database (overrides config)")
	traceLabel  = flag.String("trace-label", "", "Label for the recorded trace session")
	demo        = flag.Bool("demo", false, "Feed a simulated mouse drag instead of waiting for a bridge")
	verbose     = flag.Bool("verbose", false, "Log every tick and slot assignment")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println("pointerd", version.String())
		return
	}

	cfg, err := config.LoadPointerConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyOverrides(cfg)
	monitoring.SetVerbose(*verbose || cfg.GetVerbose())

	pcfg, err := pipeline.ConfigFromPointer(cfg)
	if err != nil {
		log.Fatalf("invalid pipeline config: %v", err)
	}
	device := l5device.New(pcfg.PoolCapacity)
	pipe := pipeline.New(pcfg, device)

	mon := monitor.New(pipe, device, nil)
	pipe.AddRecorder(mon.History())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	mux := http.NewServeMux()
	mon.AttachAdminRoutes(mux)

	var store *tracestore.Store
	if path := cfg.GetTraceDB(); path != "" {
		store, err = tracestore.Open(path)
		if err != nil {
			log.Fatalf("failed to open trace store: %v", err)
		}
		defer store.Close()

		snapshot := configSnapshot(cfg)
		label := *traceLabel
		if label == "" {
			label = "pointerd " + version.Version
		}
		id, err := store.StartSession(label, snapshot, time.Now())
		if err != nil {
			log.Fatalf("failed to start trace session: %v", err)
		}
		log.Printf("[trace] recording session %s to %s", id, path)
		pipe.AddRecorder(store)
		if err := store.AttachAdminRoutes(mux); err != nil {
			log.Printf("[trace] tailsql disabled: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Run(ctx, time.Second); err != nil {
				log.Printf("[trace] writer stopped: %v", err)
			}
		}()
	}

	bridge := openSerial(cfg)
	defer bridge.Close()
	bridge.AttachAdminRoutes(mux)
	if err := bridge.Initialise(); err != nil {
		log.Fatalf("failed to initialise tracking bridge: %v", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bridge.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[serial] monitor stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := source.NewSerialBridge(bridge, pipe, timeutil.RealClock{}).Run(ctx); err != nil {
			log.Printf("[serial] bridge stopped: %v", err)
		}
	}()

	if addr := cfg.GetUDPListen(); addr != "" {
		listener := source.NewUDPListener(source.UDPListenerConfig{Address: addr, Sink: pipe})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[udp] listener stopped: %v", err)
			}
		}()
	}

	if *demo {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runDemo(ctx, pipe)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Run(ctx); err != nil {
			log.Printf("[pipeline] tick loop stopped: %v", err)
		}
	}()

	var grpcServer *rpc.Server
	if addr := cfg.GetGRPCListen(); addr != "" {
		svc := rpc.NewService(mon, pipe, device)
		pipe.AddRecorder(svc)
		grpcServer = rpc.NewServer(svc)
		if err := grpcServer.Start(addr); err != nil {
			log.Fatalf("failed to start gRPC server: %v", err)
		}
	}

	if addr := cfg.GetMonitorListen(); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, addr, mux)
		}()
	}

	<-ctx.Done()
	log.Printf("shutting down...")
	if grpcServer != nil {
		grpcServer.Stop()
	}
	wg.Wait()

	pipe.Reset()
	device.Reset()
	if store != nil {
		if err := store.EndSession(time.Now()); err != nil {
			log.Printf("[trace] failed to end session: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
}

// configSnapshot renders v for the trace session row. A value that cannot
// be encoded is logged and recorded as no snapshot.
func configSnapshot(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[trace] config snapshot not recorded: %v", err)
		return ""
	}
	return string(b)
}

func applyOverrides(cfg *config.PointerConfig) {
	if *serialPort != "" {
		cfg.SerialPort = serialPort
	}
	if *udpListen != "" {
		cfg.UDPListen = udpListen
	}
	if *traceDB != "" {
		cfg.TraceDB = traceDB
	}
}

func openSerial(cfg *config.PointerConfig) serialmux.SerialMuxInterface {
	path := cfg.GetSerialPort()
	if path == "" {
		log.Printf("[serial] no bridge port configured; serial input disabled")
		return serialmux.NewDisabledSerialMux()
	}
	m, err := serialmux.NewRealSerialMux(path, serialmux.PortOptions{BaudRate: cfg.GetSerialBaud()})
	if err != nil {
		log.Fatalf("failed to open tracking bridge %s: %v", path, err)
	}
	log.Printf("[serial] tracking bridge on %s at %d baud", path, cfg.GetSerialBaud())
	return m
}

func serveHTTP(ctx context.Context, addr string, mux *http.ServeMux) {
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("[monitor] debug routes on http://%s/debug/", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[monitor] HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[monitor] HTTP server shutdown error: %v", err)
	}
}

// runDemo drags a simulated mouse around a circle, releasing every two
// seconds, at 60 frames per second.
func runDemo(ctx context.Context, sink pipeline.Sink) {
	cam := source.DefaultCamera
	frames := make(chan source.MouseFrame)
	sim := source.NewSimulator(cam)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sim.Run(ctx, frames, sink); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[demo] simulator stopped: %v", err)
		}
	}()

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		select {
		case <-ctx.Done():
			<-done
			return
		case <-ticker.C:
		}
		angle := float64(frame%120) / 120 * 2 * math.Pi
		f := source.MouseFrame{
			X:       cam.Width/2 + cam.Width/4*math.Cos(angle),
			Y:       cam.Height/2 + cam.Height/4*math.Sin(angle),
			Pressed: frame%120 < 100,
		}
		select {
		case frames <- f:
		case <-ctx.Done():
		}
	}
}
