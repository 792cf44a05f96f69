// Package api exposes the auction lifecycle over HTTP. Identity is
// resolved upstream by the gateway and forwarded in the X-User-Email and
// X-User-Role headers; this service trusts them and enforces only
// role-based access.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/craftbay/auction-service/internal/auction"
	"github.com/craftbay/auction-service/internal/pricecache"
	"github.com/craftbay/auction-service/internal/store"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	mgr    *auction.Manager
	cache  *pricecache.Cache
	logger *slog.Logger
}

// New creates the API server. cache may be nil to disable the advisory
// bid floor pre-filter.
func New(mgr *auction.Manager, cache *pricecache.Cache, logger *slog.Logger) *Server {
	return &Server{mgr: mgr, cache: cache, logger: logger}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/requests", s.requireIdentity(s.handleSubmitRequest)).Methods(http.MethodPost)
	v1.HandleFunc("/requests", s.requireIdentity(s.handleListRequests)).Methods(http.MethodGet)

	v1.HandleFunc("/moderation/requests", s.requireModerator(s.handleListPending)).Methods(http.MethodGet)
	v1.HandleFunc("/moderation/requests/{id}/approve", s.requireModerator(s.handleApprove)).Methods(http.MethodPut)
	v1.HandleFunc("/moderation/requests/{id}/reject", s.requireModerator(s.handleReject)).Methods(http.MethodPut)

	v1.HandleFunc("/auctions/active", s.requireIdentity(s.handleListActive)).Methods(http.MethodGet)
	v1.HandleFunc("/auctions/participated", s.requireIdentity(s.handleListParticipated)).Methods(http.MethodGet)
	v1.HandleFunc("/auctions/summary", s.requireIdentity(s.handleSummary)).Methods(http.MethodGet)
	v1.HandleFunc("/auctions/{id}", s.requireIdentity(s.handleGetAuction)).Methods(http.MethodGet)
	v1.HandleFunc("/auctions/{id}/bids", s.requireIdentity(s.handlePlaceBid)).Methods(http.MethodPost)
	v1.HandleFunc("/auctions/{id}/close", s.requireModerator(s.handleClose)).Methods(http.MethodPost)
	v1.HandleFunc("/auctions/{id}/invoice", s.requireIdentity(s.handleInvoice)).Methods(http.MethodGet)

	return r
}

// identity extracts the forwarded principal from the request headers.
func identity(r *http.Request) store.Identity {
	return store.Identity{
		Email: r.Header.Get("X-User-Email"),
		Role:  store.Role(r.Header.Get("X-User-Role")),
	}
}

type identityHandler func(w http.ResponseWriter, r *http.Request, id store.Identity)

func (s *Server) requireIdentity(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)
		if id.Email == "" {
			respondError(w, http.StatusUnauthorized, "missing identity")
			return
		}
		next(w, r, id)
	}
}

func (s *Server) requireModerator(next identityHandler) http.HandlerFunc {
	return s.requireIdentity(func(w http.ResponseWriter, r *http.Request, id store.Identity) {
		if id.Role != store.RoleInstructor {
			respondError(w, http.StatusForbidden, "moderator role required")
			return
		}
		next(w, r, id)
	})
}

// statusWriter captures the response code for access logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		s.logger.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
