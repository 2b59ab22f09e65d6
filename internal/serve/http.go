package serve

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"github.com/signalsfoundry/transport-simulator/kb"
)

// NewStateHandler serves the latest simulation state:
//
//	GET /events?stream=snapshot|detach  server-sent events
//	GET /snapshot                       latest full snapshot
//	GET /movers, /movers/{id}
//	GET /stations, /stations/{id}
func NewStateHandler(store *kb.KnowledgeBase, events *EventStream) http.Handler {
	mux := http.NewServeMux()
	if events != nil {
		mux.Handle("GET /events", events)
	}
	mux.HandleFunc("GET /snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := store.Latest()
		if !ok {
			http.Error(w, "no snapshot published yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snap)
	})
	mux.HandleFunc("GET /movers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, store.ListMovers())
	})
	mux.HandleFunc("GET /movers/{id}", func(w http.ResponseWriter, r *http.Request) {
		m, ok := store.GetMover(r.PathValue("id"))
		if !ok {
			http.Error(w, "mover not found", http.StatusNotFound)
			return
		}
		writeJSON(w, m)
	})
	mux.HandleFunc("GET /stations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, store.ListStations())
	})
	mux.HandleFunc("GET /stations/{id}", func(w http.ResponseWriter, r *http.Request) {
		s, ok := store.GetStation(r.PathValue("id"))
		if !ok {
			http.Error(w, "station not found", http.StatusNotFound)
			return
		}
		writeJSON(w, s)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe runs handler on addr in the background. The returned server
// is shut down by the caller; a nil server means addr was empty.
func ListenAndServe(addr string, handler http.Handler, name string, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	if log == nil {
		log = logging.Noop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "http server exited",
				logging.String("server", name), logging.Err(err))
		}
	}()
	log.Info(context.Background(), "serving http", logging.String("server", name), logging.String("addr", addr))
	return srv
}
