// Package control exposes a small HTTP surface for steering a running
// daemon: interval, worker count and last-run status. The listener doubles
// as the single-instance lock.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"govcomms/app"
)

var ErrAlreadyRunning = errors.New("already running")

// TryListen tries to bind the control address. If it's already in use, we
// assume another daemon instance holds it.
func TryListen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ErrAlreadyRunning
	}
	return ln, nil
}

// Controller is the slice of the runner the control surface needs.
type Controller interface {
	SetInterval(d time.Duration)
	Resize(workers int) error
	CurrentInterval() time.Duration
	CurrentWorkers() int
	LastRun() *app.RunReport
}

type Server struct {
	ctrl Controller
}

func NewServer(ctrl Controller) *Server { return &Server{ctrl: ctrl} }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/set-interval":
		s.handleSetInterval(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/set-workers":
		s.handleSetWorkers(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/status":
		s.handleStatus(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Duration string `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid duration: %v", err), http.StatusBadRequest)
		return
	}
	if d <= 0 {
		http.Error(w, "duration must be > 0", http.StatusBadRequest)
		return
	}

	old := s.ctrl.CurrentInterval()
	s.ctrl.SetInterval(d)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "old": old.String(), "new": d.String()})
}

func (s *Server) handleSetWorkers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Workers int `json:"workers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	old := s.ctrl.CurrentWorkers()
	if err := s.ctrl.Resize(req.Workers); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "old": old, "new": req.Workers})
}

// Status mirrors GET /status.
type Status struct {
	Running  bool       `json:"running"`
	Interval string     `json:"interval"`
	Workers  int        `json:"workers"`
	LastRun  *RunStatus `json:"last_run"`
}

// RunStatus is the last finished batch, flattened for the wire.
type RunStatus struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Sources        int       `json:"sources"`
	NewItems       int       `json:"new_items"`
	Skipped        int       `json:"skipped"`
	Failures       int       `json:"failures"`
	GlobalRendered int       `json:"global_rendered"`
	OK             bool      `json:"ok"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := Status{
		Running:  true,
		Interval: s.ctrl.CurrentInterval().String(),
		Workers:  s.ctrl.CurrentWorkers(),
	}
	if rep := s.ctrl.LastRun(); rep != nil {
		st.LastRun = &RunStatus{
			RunID:          rep.RunID,
			StartedAt:      rep.StartedAt,
			FinishedAt:     rep.FinishedAt,
			Sources:        len(rep.Cycles),
			NewItems:       rep.NewItems,
			Skipped:        rep.Skipped,
			Failures:       rep.Failures,
			GlobalRendered: len(rep.GlobalRendered),
			OK:             rep.OK(),
		}
	}
	_ = json.NewEncoder(w).Encode(st)
}
