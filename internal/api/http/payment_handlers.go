package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bidware/bidware/internal/application/paymentgate"
)

func (s *Server) startListingFee(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid listing id")
		return
	}
	sellerID := userFromRequest(r)
	if sellerID == "" {
		respondError(w, http.StatusBadRequest, "missing_user", "X-User-ID header is required")
		return
	}
	p, err := s.listingSvc.StartListingFeePayment(r.Context(), id, sellerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) startAccessFee(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid listing id")
		return
	}
	buyerID := userFromRequest(r)
	if buyerID == "" {
		respondError(w, http.StatusBadRequest, "missing_user", "X-User-ID header is required")
		return
	}
	p, err := s.listingSvc.StartAccessFeePayment(r.Context(), id, buyerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) listListingPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid listing id")
		return
	}
	ps, err := s.listingSvc.ListPayments(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ps)
}

func (s *Server) listPayerPayments(w http.ResponseWriter, r *http.Request) {
	payerID := userFromRequest(r)
	if payerID == "" {
		respondError(w, http.StatusBadRequest, "missing_user", "X-User-ID header is required")
		return
	}
	ps, err := s.listingSvc.ListPaymentsByPayer(r.Context(), payerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ps)
}

type paymentEventRequest struct {
	Type        string `json:"type"`
	ListingID   string `json:"listingId"`
	PayerID     string `json:"payerId"`
	Amount      int64  `json:"amount"`
	ExternalRef string `json:"externalRef"`
	Reason      string `json:"reason"`
}

// paymentEvent receives gateway webhooks reporting the outcome of a payment
// started through the fee endpoints.
func (s *Server) paymentEvent(w http.ResponseWriter, r *http.Request) {
	var req paymentEventRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid listing id")
		return
	}
	switch req.Type {
	case "settled":
		err = s.gate.PaymentSettled(r.Context(), paymentgate.SettledEvent{
			ListingID:   listingID,
			PayerID:     req.PayerID,
			Amount:      req.Amount,
			ExternalRef: req.ExternalRef,
		})
	case "failed":
		err = s.gate.PaymentFailed(r.Context(), paymentgate.FailedEvent{
			ListingID:   listingID,
			PayerID:     req.PayerID,
			Reason:      req.Reason,
			ExternalRef: req.ExternalRef,
		})
	default:
		respondError(w, http.StatusBadRequest, "bad_request", "unknown event type")
		return
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
