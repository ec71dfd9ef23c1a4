// Package server exposes the gate over HTTP. Every API route requires the
// configured key, presented as a bearer token or as an auth_key field in
// the request body; a service started without a key refuses requests
// instead of running open. Execution reuses the same pipeline as /rewrite,
// so nothing reaches the interpreter that the validator has not passed.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"chronogate/internal/config"
	"chronogate/internal/gate"
	"chronogate/internal/runner"
)

// maxBody caps request bodies; scripts are small.
const maxBody = 512 << 10

// Server wires the HTTP surface to a gate.
type Server struct {
	cfg     config.Config
	gate    *gate.Gate
	version string
}

// New returns a server for the given configuration and gate.
func New(cfg config.Config, g *gate.Gate, version string) *Server {
	return &Server{cfg: cfg, gate: g, version: version}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/version", s.handleVersion)

	r.Post("/validate", s.handleValidate)
	r.Post("/rewrite", s.handleRewrite)
	r.Post("/execute", s.handleExecute)
	return r
}

// ListenAndServe runs the server on the configured address.
func (s *Server) ListenAndServe() error {
	log.Printf("chronogate listening on %s", s.cfg.ListenAddr)
	return http.ListenAndServe(s.cfg.ListenAddr, s.Router())
}

// requestID tags each request with a fresh ID, echoed in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, id)))
	})
}

type codeRequest struct {
	Code    string `json:"code"`
	AuthKey string `json:"auth_key"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

type validateResponse struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

type rewriteResponse struct {
	OK           bool     `json:"ok"`
	Errors       []string `json:"errors"`
	Rewritten    string   `json:"rewritten"`
	Replacements []rename `json:"replacements"`
}

type rename struct {
	Kind string `json:"kind"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

type executeResponse struct {
	OK         bool   `json:"ok"`
	ReturnCode int    `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	TimedOut   bool   `json:"timed_out"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"name": "chronogate",
		"ts":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"ts": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	_, err := s.gate.Policy()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"version":          s.version,
		"allowlist_loaded": err == nil,
	})
}

// authorize checks the bearer header first, then the body auth_key. An
// unset service key is a deployment error: fail closed with a 500.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, bodyKey string) bool {
	if s.cfg.AuthKey == "" {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "auth key not configured"})
		return false
	}
	presented := bodyKey
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		presented = token
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.cfg.AuthKey)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "invalid or missing auth key"})
		return false
	}
	return true
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCode(w, r)
	if !ok || !s.authorize(w, r, req.AuthKey) {
		return
	}
	res, err := s.gate.Validate(req.Code)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{OK: res.OK, Errors: stringsOf(res)})
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCode(w, r)
	if !ok || !s.authorize(w, r, req.AuthKey) {
		return
	}
	res, err := s.gate.RewriteAndValidate(req.Code)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rewriteResponse{
		OK:           res.OK,
		Errors:       stringsOf(res),
		Rewritten:    res.Rewritten,
		Replacements: renamesOf(res),
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCode(w, r)
	if !ok || !s.authorize(w, r, req.AuthKey) {
		return
	}
	res, err := s.gate.RewriteAndValidate(req.Code)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: err.Error()})
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusUnprocessableEntity, validateResponse{OK: false, Errors: stringsOf(res)})
		return
	}
	out, err := runner.Run(r.Context(), res.Rewritten, runner.Options{
		Python:  s.cfg.PythonBin,
		Timeout: s.cfg.ExecTimeout(),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: err.Error()})
		return
	}
	status := http.StatusOK
	if out.TimedOut {
		status = http.StatusRequestTimeout
	}
	writeJSON(w, status, executeResponse{
		OK:         out.ReturnCode == 0 && !out.TimedOut,
		ReturnCode: out.ReturnCode,
		Stdout:     out.Stdout,
		Stderr:     out.Stderr,
		TimedOut:   out.TimedOut,
	})
}

func decodeCode(w http.ResponseWriter, r *http.Request) (codeRequest, bool) {
	var req codeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Detail: "request body too large"})
			return req, false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid JSON body"})
		return req, false
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "missing 'code' field"})
		return req, false
	}
	return req, true
}

func stringsOf(res *gate.Result) []string {
	errs := res.Errors()
	if errs == nil {
		errs = []string{}
	}
	return errs
}

func renamesOf(res *gate.Result) []rename {
	out := make([]rename, len(res.Renames))
	for i, r := range res.Renames {
		out[i] = rename{Kind: r.Kind, Old: r.Old, New: r.New}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
