package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appListing "github.com/bidware/bidware/internal/application/listing"
	"github.com/bidware/bidware/internal/application/bidding"
	"github.com/bidware/bidware/internal/application/paymentgate"
	domainListing "github.com/bidware/bidware/internal/domain/listing"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	listingSvc *appListing.Service
	biddingSvc *bidding.Service
	gate       *paymentgate.Adapter
}

// NewServer creates the API server.
func NewServer(listingSvc *appListing.Service, biddingSvc *bidding.Service, gate *paymentgate.Adapter) *Server {
	return &Server{
		listingSvc: listingSvc,
		biddingSvc: biddingSvc,
		gate:       gate,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/listings", func(r chi.Router) {
			r.Post("/", s.createListing)
			r.Get("/", s.listListings)
			r.Route("/{listingId}", func(r chi.Router) {
				r.Get("/", s.getListing)
				r.Put("/", s.updateListing)
				r.Delete("/", s.deleteListing)
				r.Post("/review", s.reviewListing)
				r.Post("/bids", s.placeBid)
				r.Post("/fees/listing", s.startListingFee)
				r.Post("/fees/access", s.startAccessFee)
				r.Get("/payments", s.listListingPayments)
			})
		})
		r.Route("/payments", func(r chi.Router) {
			r.Post("/events", s.paymentEvent)
			r.Get("/", s.listPayerPayments)
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainListing.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domainListing.ErrOutbid):
		respondError(w, http.StatusConflict, "outbid", err.Error())
	case errors.Is(err, domainListing.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domainListing.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, domainListing.ErrAlreadyWinning),
		errors.Is(err, domainListing.ErrBidBelowMinimum),
		errors.Is(err, domainListing.ErrNotBiddable),
		errors.Is(err, domainListing.ErrAuctionEnded),
		errors.Is(err, domainListing.ErrInvalidBasePrice),
		errors.Is(err, domainListing.ErrStartTooSoon),
		errors.Is(err, domainListing.ErrAuctionTooShort):
		respondError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// userFromRequest reads the caller identity established by the (external)
// authentication layer in front of this service.
func userFromRequest(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
