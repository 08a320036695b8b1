// Package server exposes the scheduler and allocator engines over HTTP and pushes
// state changes to subscribers as server-sent events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mirage-os/mirage-sim/sim"
	"github.com/mirage-os/mirage-sim/sim/memory"
)

// Config groups transport parameters for New.
type Config struct {
	SubscriberBuffer int           // per-subscriber event buffer (≤0 = DefaultSubscriberBuffer)
	KeepAlive        time.Duration // SSE comment interval (0 = no keep-alive)
}

// Snapshot is the combined engine state pushed to subscribers.
type Snapshot struct {
	ProcessState sim.SystemState    `json:"processState"`
	MemoryState  memory.MemoryState `json:"memoryState"`
}

// Server serializes every engine call behind a single mutex.
type Server struct {
	mu    sync.Mutex
	sched *sim.Scheduler
	alloc *memory.Allocator

	hub       *Hub
	keepAlive time.Duration
	router    chi.Router
}

// New creates a Server over the given engines and registers its routes.
func New(sched *sim.Scheduler, alloc *memory.Allocator, cfg Config) *Server {
	s := &Server{
		sched:     sched,
		alloc:     alloc,
		hub:       NewHub(cfg.SubscriberBuffer),
		keepAlive: cfg.KeepAlive,
		router:    chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(logRequests)

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/processes", func(r chi.Router) {
		r.Get("/", s.handleProcessState)
		r.Post("/", s.handleAddProcess)
		r.Get("/{id}", s.handleGetProcess)
		r.Delete("/{id}", s.handleRemoveProcess)
		r.Post("/step", s.handleStep)
		r.Post("/algorithm", s.handleSchedulingAlgorithm)
		r.Post("/quantum", s.handleTimeQuantum)
		r.Post("/reset", s.handleSchedulerReset)
		r.Post("/clear", s.handleSchedulerClear)
	})

	r.Route("/api/memory", func(r chi.Router) {
		r.Get("/", s.handleMemoryState)
		r.Post("/allocate", s.handleAllocate)
		r.Post("/deallocate", s.handleDeallocate)
		r.Post("/algorithm", s.handleAllocationAlgorithm)
		r.Post("/reset", s.handleMemoryReset)
	})

	r.Get("/api/events", s.handleEvents)
}

// Handler returns the HTTP handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the server's event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
// Open event streams are closed on shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.hub.Close)

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logrus.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	}
}

// snapshotLocked captures both engines. Callers hold s.mu.
func (s *Server) snapshotLocked() Snapshot {
	return Snapshot{
		ProcessState: s.sched.State(),
		MemoryState:  s.alloc.State(),
	}
}

// publishLocked broadcasts the current state to subscribers. Callers hold s.mu so
// updates are delivered in mutation order.
func (s *Server) publishLocked() {
	if s.hub.Len() == 0 {
		return
	}
	data, err := json.Marshal(s.snapshotLocked())
	if err != nil {
		logrus.Errorf("encoding update event: %v", err)
		return
	}
	s.hub.Broadcast(Event{Type: EventUpdate, Data: data})
}

// mutate runs fn under the engine lock and broadcasts the resulting state.
func (s *Server) mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.publishLocked()
}

// Request and response bodies.
type (
	addProcessRequest struct {
		Name      string `json:"name"`
		BurstTime int64  `json:"burstTime"`
		Priority  int64  `json:"priority"`
	}
	addProcessResponse struct {
		Success bool        `json:"success"`
		Process sim.Process `json:"process"`
	}
	algorithmRequest struct {
		Algorithm string `json:"algorithm"`
	}
	algorithmResponse struct {
		Success   bool   `json:"success"`
		Algorithm string `json:"algorithm"`
	}
	quantumRequest struct {
		TimeQuantum int64 `json:"timeQuantum"`
	}
	quantumResponse struct {
		Success     bool  `json:"success"`
		TimeQuantum int64 `json:"timeQuantum"`
	}
	allocateRequest struct {
		ProcessID string `json:"processId"`
		Size      int64  `json:"size"`
	}
	deallocateRequest struct {
		ProcessID string `json:"processId"`
	}
	statusResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
	healthResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Message: "mirage-sim server running"})
}

func (s *Server) handleProcessState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.sched.State()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAddProcess(w http.ResponseWriter, r *http.Request) {
	var req addProcessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BurstTime <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("burstTime must be positive, got %d", req.BurstTime))
		return
	}
	var p sim.Process
	s.mutate(func() {
		p = s.sched.AddProcess(sim.ProcessSpec{Name: req.Name, BurstTime: req.BurstTime, Priority: req.Priority})
	})
	writeJSON(w, http.StatusOK, addProcessResponse{Success: true, Process: p})
}

func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := processID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	p, found := s.sched.Process(id)
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("process %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRemoveProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := processID(w, r)
	if !ok {
		return
	}
	s.mutate(func() { s.sched.RemoveProcess(id) })
	writeJSON(w, http.StatusOK, statusResponse{Success: true})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var st sim.SystemState
	s.mutate(func() { st = s.sched.ExecuteStep() })
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSchedulingAlgorithm(w http.ResponseWriter, r *http.Request) {
	var req algorithmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	policy := sim.ParseSchedulingPolicy(req.Algorithm)
	s.mutate(func() { s.sched.SetSchedulingAlgorithm(policy) })
	writeJSON(w, http.StatusOK, algorithmResponse{Success: true, Algorithm: string(policy)})
}

func (s *Server) handleTimeQuantum(w http.ResponseWriter, r *http.Request) {
	var req quantumRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var q int64
	s.mutate(func() {
		s.sched.SetTimeQuantum(req.TimeQuantum)
		q = s.sched.TimeQuantum()
	})
	writeJSON(w, http.StatusOK, quantumResponse{Success: true, TimeQuantum: q})
}

func (s *Server) handleSchedulerReset(w http.ResponseWriter, r *http.Request) {
	var st sim.SystemState
	s.mutate(func() {
		s.sched.Reset()
		st = s.sched.State()
	})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSchedulerClear(w http.ResponseWriter, r *http.Request) {
	var st sim.SystemState
	s.mutate(func() {
		s.sched.Clear()
		st = s.sched.State()
	})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMemoryState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.alloc.State()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

// handleAllocate answers 200 for engine-level failures; the result carries success=false.
func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProcessID == "" {
		writeError(w, http.StatusBadRequest, "processId is required")
		return
	}
	var res memory.AllocationResult
	s.mutate(func() { res = s.alloc.Allocate(req.ProcessID, req.Size) })
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeallocate(w http.ResponseWriter, r *http.Request) {
	var req deallocateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var res memory.DeallocationResult
	s.mutate(func() { res = s.alloc.Deallocate(req.ProcessID) })
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAllocationAlgorithm(w http.ResponseWriter, r *http.Request) {
	var req algorithmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	policy := memory.ParsePlacementPolicy(req.Algorithm)
	s.mutate(func() { s.alloc.SetAllocationAlgorithm(policy) })
	writeJSON(w, http.StatusOK, algorithmResponse{Success: true, Algorithm: string(policy)})
}

func (s *Server) handleMemoryReset(w http.ResponseWriter, r *http.Request) {
	var st memory.MemoryState
	s.mutate(func() {
		s.alloc.Reset()
		st = s.alloc.State()
	})
	writeJSON(w, http.StatusOK, st)
}

// processID parses the {id} path parameter, answering 400 when it is not an integer.
func processID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid process id %q", raw))
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logrus.Debugf("%s %s: invalid body: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusResponse{Success: false, Message: msg})
}
