package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davidps79/backend-grupo-13/internal/order"
	"github.com/davidps79/backend-grupo-13/internal/payment"
)

// handleBuy creates the order and immediately requests its payment link.
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	var req struct {
		EbookID  uuid.UUID `json:"ebookId"`
		Quantity int       `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	link, err := s.orders.Buy(r.Context(), order.CreateOrderRequest{
		BuyerID:  principal.UserID,
		EbookID:  req.EbookID,
		Quantity: req.Quantity,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, link)
}

// handlePaymentCallback receives the gateway's asynchronous settlement.
// Duplicate deliveries return 200 like first deliveries; only an unknown
// transaction is rejected.
func (s *Server) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	var cb payment.Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.orders.HandleCallback(r.Context(), cb); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (s *Server) handleCartItems(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	items, err := s.cart.Items(r.Context(), principal.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	var req struct {
		EbookID  uuid.UUID `json:"ebookId"`
		Quantity int       `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := s.cart.AddItem(r.Context(), principal.UserID, req.EbookID, req.Quantity)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	ebookID, err := uuid.Parse(chi.URLParam(r, "ebookId"))
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid ebook id")
		return
	}

	if err := s.cart.RemoveItem(r.Context(), principal.UserID, ebookID); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"affected": 1})
}

func (s *Server) handleCheckoutCart(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	links, err := s.orders.CheckoutCart(r.Context(), principal.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, links)
}
