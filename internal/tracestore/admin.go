package tracestore

import (
	"encoding/json"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/spatialpointer/internal/monitoring"
)

// AttachAdminRoutes mounts tailsql over the trace database and a JSON
// session list under /debug/.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return err
	}
	tsql.SetDB("sqlite://"+s.path, s.db, &tailsql.DBOptions{
		Label: "Pointer trace DB",
	})
	debug.Handle("tailsql/", "SQL live debugging of pointer traces", tsql.NewMux())

	debug.HandleFunc("trace-sessions", "Recorded pointer trace sessions (JSON)", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := s.Sessions()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		written, dropped := s.Counters()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"active":   s.Session(),
			"written":  written,
			"dropped":  dropped,
			"sessions": sessions,
		}); err != nil {
			monitoring.Logf("[trace] encode sessions: %v", err)
		}
	})
	return nil
}
