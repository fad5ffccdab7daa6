package httpapi

import (
	"net/http"
	"time"

	appListing "github.com/bidware/bidware/internal/application/listing"
	domainListing "github.com/bidware/bidware/internal/domain/listing"
)

type submitListingRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	BasePrice   int64     `json:"basePrice"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
}

func (s *Server) createListing(w http.ResponseWriter, r *http.Request) {
	sellerID := userFromRequest(r)
	if sellerID == "" {
		respondError(w, http.StatusBadRequest, "missing_user", "X-User-ID header is required")
		return
	}
	var req submitListingRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	l, err := s.listingSvc.Create(r.Context(), appListing.SubmitInput{
		SellerID:    sellerID,
		Title:       req.Title,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, l)
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid listing id")
		return
	}
	l, err := s.listingSvc.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("sellerId") != "":
		ls, err := s.listingSvc.ListBySeller(r.Context(), q.Get("sellerId"))
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ls)
	case q.Get("wonBy") != "":
		ls, err := s.listingSvc.ListPurchases(r.Context(), q.Get("wonBy"))
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ls)
	case q.Get("status") != "":
		status, err := domainListing.ParseStatus(q.Get("status"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		ls, err := s.listingSvc.ListByStatus(r.Context(), status)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ls)
	default:
		ls, err := s.listingSvc.ListOpenAuctions(r.Context())
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ls)
	}
}

func (s *Server) updateListing(w http.ResponseWriter, r *http.Request) {
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
	var req submitListingRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	l, err := s.listingSvc.Update(r.Context(), id, appListing.SubmitInput{
		SellerID:    sellerID,
		Title:       req.Title,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (s *Server) deleteListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid listing id")
		return
	}
	if err := s.listingSvc.Delete(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewRequest struct {
	Approve  bool   `json:"approve"`
	Comments string `json:"comments"`
}

func (s *Server) reviewListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid listing id")
		return
	}
	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := s.listingSvc.Review(r.Context(), id, req.Approve, req.Comments); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type placeBidRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid listing id")
		return
	}
	bidderID := userFromRequest(r)
	if bidderID == "" {
		respondError(w, http.StatusBadRequest, "missing_user", "X-User-ID header is required")
		return
	}
	var req placeBidRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	l, err := s.biddingSvc.PlaceBid(r.Context(), id, bidderID, req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}
