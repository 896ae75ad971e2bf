package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/creditledger/internal/models"
	"github.com/punchamoorthee/creditledger/internal/service"
)

const maxBodyBytes = 1 << 20

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	})
}

// =============================================================================
// CLIENTS
// =============================================================================

func (h *Handler) CreateClientHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.catalog.CreateClient(r.Context(), req)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/clients/%d", c.ID))
	respondWithJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListClientsHandler(w http.ResponseWriter, r *http.Request) {
	cs, err := h.catalog.Clients(r.Context())
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cs)
}

func (h *Handler) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.catalog.Client(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearDebtHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.ledger.ClearDebt(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) PartialPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.PartialPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.ledger.PartialPayment(r.Context(), id, req)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) ClientPurchasesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	loc := h.ledger.Location()
	start, err := parseDate(q.Get("startDate"), false, loc)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid startDate")
		return
	}
	end, err := parseDate(q.Get("endDate"), true, loc)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid endDate")
		return
	}
	var paid *bool
	if v := q.Get("paid"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid paid filter")
			return
		}
		paid = &b
	}

	report, err := h.ledger.ClientPurchases(r.Context(), id, start, end, paid)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) DebtMessageHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := h.sales.SendDebtMessage(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (h *Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.catalog.CreateProduct(r.Context(), req)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/products/%d", p.ID))
	respondWithJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	ps, err := h.catalog.Products(r.Context())
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ps)
}

func (h *Handler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.catalog.UpdateProduct(r.Context(), id, req)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SALES
// =============================================================================

func (h *Handler) CreateSaleHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.sales.RecordSale(r.Context(), req)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/sales/%d", p.ID))
	respondWithJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListSalesHandler(w http.ResponseWriter, r *http.Request) {
	ps, err := h.sales.Sales(r.Context())
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ps)
}

func (h *Handler) PayPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.ledger.PayPurchase(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (h *Handler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.Audit(r.Context())
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) NotificationStatusHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"state": string(h.sales.NotifierState())})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
// It writes the 400 itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// parseDate accepts YYYY-MM-DD (a calendar day in loc) or RFC 3339. A bare
// date used as an upper bound covers the whole day. Empty input yields the
// zero time.
func parseDate(s string, upper bool, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		if upper {
			return service.EndOfDay(t), nil
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
