package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/craftbay/auction-service/internal/auction"
	"github.com/craftbay/auction-service/internal/store"
)

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request, id store.Identity) {
	var p auction.Proposal
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	rec, err := s.mgr.SubmitRequest(r.Context(), p, id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request, id store.Identity) {
	recs, err := s.mgr.ListRequests(r.Context(), id.Email)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request, _ store.Identity) {
	recs, err := s.mgr.ListPendingForModeration(r.Context())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, _ store.Identity) {
	id := mux.Vars(r)["id"]
	if err := s.mgr.Approve(r.Context(), id); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(store.StatusApproved)})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request, _ store.Identity) {
	id := mux.Vars(r)["id"]
	if err := s.mgr.Reject(r.Context(), id); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(store.StatusRejected)})
}

func (s *Server) handleListActive(w http.ResponseWriter, r *http.Request, _ store.Identity) {
	recs, err := s.mgr.ListActive(r.Context())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

// handleGetAuction reads one auction. Reading a record past its deadline
// settles it first, so callers always observe the terminal outcome
// regardless of sweep timing.
func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request, _ store.Identity) {
	id := mux.Vars(r)["id"]
	rec, err := s.mgr.EvaluateClosable(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.refreshFloor(r, rec)
	respondJSON(w, http.StatusOK, rec)
}

type bidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request, id store.Identity) {
	recordID := mux.Vars(r)["id"]

	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	// Advisory pre-filter: the floor only moves up, so a cached value is
	// a lower bound and anything below it can be refused without a
	// ledger round-trip.
	if floor, found, err := s.cache.MinNextBid(r.Context(), recordID); err != nil {
		s.logger.WarnContext(r.Context(), "price cache read failed", slog.Any("error", err))
	} else if found && req.Amount.LessThan(floor) {
		respondError(w, http.StatusUnprocessableEntity, "bid is below the required minimum of "+floor.String())
		return
	}

	rec, err := s.mgr.PlaceBid(r.Context(), recordID, id.Email, req.Amount)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.refreshFloor(r, rec)
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListParticipated(w http.ResponseWriter, r *http.Request, id store.Identity) {
	recs, err := s.mgr.ListParticipated(r.Context(), id.Email)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, id store.Identity) {
	summary, err := s.mgr.Summarize(r.Context(), id.Email)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request, _ store.Identity) {
	id := mux.Vars(r)["id"]
	rec, err := s.mgr.EvaluateClosable(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	if rec.Status == store.StatusClosed {
		s.invalidateFloor(r, rec.ID)
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request, _ store.Identity) {
	id := mux.Vars(r)["id"]
	inv, err := s.mgr.AssembleInvoiceData(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// refreshFloor updates (or drops) the cached minimum next bid after a
// fresh read of the record. Best effort.
func (s *Server) refreshFloor(r *http.Request, rec *store.Record) {
	if rec.Status != store.StatusApproved {
		s.invalidateFloor(r, rec.ID)
		return
	}
	floor := rec.CurrentAmount.Add(rec.MinIncrement)
	if err := s.cache.SetMinNextBid(r.Context(), rec.ID, floor); err != nil {
		s.logger.WarnContext(r.Context(), "price cache write failed", slog.Any("error", err))
	}
}

func (s *Server) invalidateFloor(r *http.Request, id string) {
	if err := s.cache.Invalidate(r.Context(), id); err != nil {
		s.logger.WarnContext(r.Context(), "price cache invalidation failed", slog.Any("error", err))
	}
}

// respondDomainError maps manager errors onto HTTP status codes.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auction.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, auction.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auction.ErrInvalidState),
		errors.Is(err, auction.ErrSelfBid),
		errors.Is(err, auction.ErrAuctionNotOpen):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auction.ErrBidTooLow):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
