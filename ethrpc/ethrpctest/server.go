// Package ethrpctest runs an in-process JSON-RPC endpoint for tests.
package ethrpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// Handler answers one method. Returning a non-nil *Error sends a JSON-RPC error.
type Handler func(params json.RawMessage) (any, *Error)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	*httptest.Server

	mu       sync.RWMutex
	handlers map[string]Handler
	delay    time.Duration
	status   int
	calls    atomic.Int64
}

func NewServer() *Server {
	s := &Server{handlers: make(map[string]Handler)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Server) Handle(method string, h Handler) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
	return s
}

// Result makes method always answer v.
func (s *Server) Result(method string, v any) *Server {
	return s.Handle(method, func(json.RawMessage) (any, *Error) { return v, nil })
}

// Delay holds every answer for d.
func (s *Server) Delay(d time.Duration) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return s
}

// Status forces a non-2xx HTTP status for every request.
func (s *Server) Status(code int) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
	return s
}

func (s *Server) Calls() int64 { return s.calls.Load() }

type request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	s.mu.RLock()
	delay, status := s.delay, s.status
	s.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	h, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	res := response{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		res.Error = &Error{Code: -32601, Message: "method not found"}
	} else {
		res.Result, res.Error = h(req.Params)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}
