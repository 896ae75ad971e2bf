package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/punchamoorthee/creditledger/internal/logger"
	"github.com/punchamoorthee/creditledger/internal/models"
	"github.com/punchamoorthee/creditledger/internal/service"
	"github.com/shopspring/decimal"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

func init() {
	// Money goes out as JSON numbers, e.g. 12.5 rather than "12.5".
	decimal.MarshalJSONWithoutQuotes = true
}

type Handler struct {
	ledger  *service.LedgerService
	sales   *service.SaleService
	catalog *service.CatalogService
	started time.Time
}

func NewHandler(ledger *service.LedgerService, sales *service.SaleService, catalog *service.CatalogService) *Handler {
	return &Handler{ledger: ledger, sales: sales, catalog: catalog, started: time.Now()}
}

// RouterConfig carries the transport settings of NewRouter.
type RouterConfig struct {
	APIToken    string
	CORSOrigins []string
}

// NewRouter mounts the ledger API under /api plus /health and /metrics.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, accessLog, instrument)

	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authenticate(cfg.APIToken))

	api.HandleFunc("/clients", h.CreateClientHandler).Methods(http.MethodPost)
	api.HandleFunc("/clients", h.ListClientsHandler).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id:[0-9]+}", h.GetClientHandler).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id:[0-9]+}/clear-debt", h.ClearDebtHandler).Methods(http.MethodPost)
	api.HandleFunc("/clients/{id:[0-9]+}/partial-payment", h.PartialPaymentHandler).Methods(http.MethodPost)
	api.HandleFunc("/clients/{id:[0-9]+}/purchases", h.ClientPurchasesHandler).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id:[0-9]+}/debt-message", h.DebtMessageHandler).Methods(http.MethodPost)

	api.HandleFunc("/products", h.CreateProductHandler).Methods(http.MethodPost)
	api.HandleFunc("/products", h.ListProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}", h.GetProductHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}", h.UpdateProductHandler).Methods(http.MethodPut)
	api.HandleFunc("/products/{id:[0-9]+}", h.DeleteProductHandler).Methods(http.MethodDelete)

	api.HandleFunc("/sales", h.CreateSaleHandler).Methods(http.MethodPost)
	api.HandleFunc("/sales", h.ListSalesHandler).Methods(http.MethodGet)
	api.HandleFunc("/purchases/{id:[0-9]+}/pay", h.PayPurchaseHandler).Methods(http.MethodPatch)

	api.HandleFunc("/audit/debit", h.AuditHandler).Methods(http.MethodGet)
	api.HandleFunc("/notifications/status", h.NotificationStatusHandler).Methods(http.MethodGet)

	// CORS wraps the router so preflight requests never reach method matching.
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})(r)
}

// Helpers
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.Error("response encoding failed", logger.Error(err))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

// respondWithDomainError maps service errors to status codes. Storage
// failures never leak their text.
func respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *domain.InvalidRequestError
	switch {
	case errors.As(err, &invalid):
		respondWithError(w, http.StatusBadRequest, invalid.Reason)
	case errors.Is(err, domain.ErrInvalidRequest):
		respondWithError(w, http.StatusBadRequest, "Invalid request")
	case errors.Is(err, domain.ErrClientNotFound):
		respondWithError(w, http.StatusNotFound, "Client not found")
	case errors.Is(err, domain.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, domain.ErrPurchaseNotFound):
		respondWithError(w, http.StatusNotFound, "Purchase not found")
	case errors.Is(err, domain.ErrProductInUse):
		respondWithError(w, http.StatusConflict, "Product is referenced by purchases")
	default:
		logger.Log.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("request_id", RequestIDFrom(r.Context())),
			logger.Error(err),
		)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
