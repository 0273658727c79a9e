// Command trace-plot renders the phase timeline of a recorded pointer
// trace session as an image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/spatialpointer/internal/fsutil"
	"github.com/banshee-data/spatialpointer/internal/security"
	"github.com/banshee-data/spatialpointer/internal/spatial/monitor"
	"github.com/banshee-data/spatialpointer/internal/tracestore"
)

type options struct {
	DBPath    string
	SessionID string
	OutDir    string
	Format    string
	Title     string
}

func main() {
	var opts options
	flag.StringVar(&opts.DBPath, "db", "", "Trace database written by pointerd (required)")
	flag.StringVar(&opts.SessionID, "session", "", "Session id (default: most recent)")
	flag.StringVar(&opts.OutDir, "out", ".", "Output directory")
	flag.StringVar(&opts.Format, "format", "png", "Image format (png, svg, pdf)")
	flag.StringVar(&opts.Title, "title", "", "Plot title (default: session label)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -db trace.db [options]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if opts.DBPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	store, err := tracestore.Open(opts.DBPath)
	if err != nil {
		log.Fatalf("failed to open trace database: %v", err)
	}
	defer store.Close()

	path, n, err := run(store, fsutil.OSFileSystem{}, opts)
	if err != nil {
		log.Fatalf("trace-plot: %v", err)
	}
	log.Printf("wrote %d events to %s", n, path)
}

// run plots one session and returns the output path and event count.
func run(store *tracestore.Store, fs fsutil.FileSystem, opts options) (string, int, error) {
	id := opts.SessionID
	if id == "" {
		latest, err := store.LatestSession()
		if err != nil {
			return "", 0, err
		}
		id = latest
	}

	title := opts.Title
	if title == "" {
		sessions, err := store.Sessions()
		if err != nil {
			return "", 0, err
		}
		for _, s := range sessions {
			if s.SessionID == id {
				title = s.Label
			}
		}
		if title == "" {
			title = id
		}
	}

	events, err := store.Events(id)
	if err != nil {
		return "", 0, err
	}
	if len(events) == 0 {
		return "", 0, fmt.Errorf("session %s has no delivered events", id)
	}

	path := filepath.Join(opts.OutDir, "trace-"+security.SanitizeFilename(id)+"."+opts.Format)
	if err := security.ValidateOutputPath(path); err != nil {
		return "", 0, err
	}
	if err := monitor.SaveTimeline(fs, path, events, title); err != nil {
		return "", 0, err
	}
	return path, len(events), nil
}
