package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/thrr87/hoard/internal/dispatch"
	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/log"
	"github.com/thrr87/hoard/internal/store"
)

// Server is the JSON-RPC 2.0 HTTP transport. One Server per process, built
// from the same dispatch.Env the CLI's in-process callers use, so the RPC
// path and a same-process admin command go through identical dispatch
// logic.
type Server struct {
	env    *dispatch.Env
	router chi.Router
}

// NewServer builds a Server. It only wires the router; the caller serves
// it as an http.Handler on a listener of its own (see app.App.Run).
func NewServer(env *dispatch.Env) *Server {
	s := &Server{env: env, router: chi.NewRouter()}
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Post("/rpc", s.handleRPC)
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	logger := log.Component("rpc")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	ctx, err := s.authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, newErrorResponse(nil, codeInvalidRequest, err.Error()))
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, newErrorResponse(nil, codeParseError, "invalid JSON"))
		return
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var reqs []Request
		if err := json.Unmarshal(raw, &reqs); err != nil {
			writeJSON(w, http.StatusBadRequest, newErrorResponse(nil, codeParseError, "invalid JSON-RPC batch"))
			return
		}
		responses := make([]Response, len(reqs))
		for i, req := range reqs {
			responses[i] = s.handleOne(ctx, req)
		}
		writeJSON(w, http.StatusOK, responses)
		return
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, newErrorResponse(nil, codeParseError, "invalid JSON-RPC request"))
		return
	}
	writeJSON(w, http.StatusOK, s.handleOne(ctx, req))
}

func (s *Server) handleOne(ctx context.Context, req Request) Response {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return newErrorResponse(req.ID, codeInvalidRequest, "missing jsonrpc version or method")
	}

	if _, ok := dispatch.Kind(req.Method); !ok {
		return newErrorResponse(req.ID, codeMethodNotFound, "unknown method "+req.Method)
	}

	var params map[string]any
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newErrorResponse(req.ID, codeInvalidParams, "invalid params")
		}
	}

	result, err := dispatch.Dispatch(ctx, s.env, req.Method, params)
	if err != nil {
		return newErrorResponse(req.ID, codeForError(err), err.Error())
	}
	return newResultResponse(req.ID, result)
}

// authenticate resolves the Authorization: Bearer <token> header against
// the agent_token table. A request with no Authorization header is
// treated as unauthenticated and allowed through with no agent identity,
// whether or not any tokens exist in the database; this transport never
// requires a token. A header that is present must carry a valid one.
func (s *Server) authenticate(r *http.Request) (context.Context, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return r.Context(), nil
	}
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return nil, errors.New("authorization header must use Bearer scheme")
	}

	hash := hashBearerToken(token)
	agentToken, err := store.LookupAgentToken(r.Context(), s.env.Reader, hash)
	if err != nil {
		if errors.Is(err, hoarderr.ErrNotFound) {
			return nil, errors.New("invalid or revoked token")
		}
		return nil, err
	}
	return context.WithValue(r.Context(), agentIDKey{}, agentToken.AgentID), nil
}

type agentIDKey struct{}

// AgentID extracts the authenticated agent id from a request context, if
// any. No dispatch handler reads it at present: tools take the agent from
// their own params (e.g. owner_agent).
func AgentID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(agentIDKey{}).(string)
	return v, ok
}

func codeForError(err error) int {
	switch {
	case errors.Is(err, hoarderr.ErrTransientBusy):
		return codeTransientBusy
	case errors.Is(err, hoarderr.ErrLockUnavailable):
		return codeLockUnavailable
	case errors.Is(err, hoarderr.ErrPreconditionMissed):
		return codePreconditionMissed
	case errors.Is(err, hoarderr.ErrIntegrityViolation):
		return codeIntegrityViolation
	case errors.Is(err, hoarderr.ErrSingletonConflict):
		return codeSingletonConflict
	case errors.Is(err, hoarderr.ErrStorageUnavailable):
		return codeStorageUnavailable
	case errors.Is(err, hoarderr.ErrNotFound):
		return codeNotFound
	default:
		return codeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
