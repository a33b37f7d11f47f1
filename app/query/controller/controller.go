package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/transferx/app/query/types"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this package.
// Literal segments are registered before the variable routes they shadow.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")
	r.HandleFunc("/api/ws", c.HandleWebSocket).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(c.withRequestLog, c.withQueryTimeout)

	api.HandleFunc("/transfers/recent", c.HandleRecentTransfers).Methods("GET")
	api.HandleFunc("/transactions/recent", c.HandleRecentTransfers).Methods("GET")
	api.HandleFunc("/transactions", c.HandleRecentTransfers).Methods("GET")
	api.HandleFunc("/transfers/{address}", c.HandleTransfersByAddress).Methods("GET")
	api.HandleFunc("/transfers/{address}/from", c.HandleTransfersFrom).Methods("GET")
	api.HandleFunc("/transfers/{address}/to", c.HandleTransfersTo).Methods("GET")

	api.HandleFunc("/addresses/top", c.HandleTopAddresses).Methods("GET")
	api.HandleFunc("/addresses/{address}", c.HandleAddressDetails).Methods("GET")
	api.HandleFunc("/address/{address}", c.HandleAddressDetails).Methods("GET")
	api.HandleFunc("/addresses/{address}/tokens/{token}/transfers", c.HandleAddressTokenTransfers).Methods("GET")
	api.HandleFunc("/tokens/{token}/transfers", c.HandleTokenTransfers).Methods("GET")
	api.HandleFunc("/baseindex/{address}", c.HandleBaseIndex).Methods("GET")
	api.HandleFunc("/network/stats", c.HandleNetworkStats).Methods("GET")

	api.HandleFunc("/blocks", c.HandleBlocks).Methods("GET")
	api.HandleFunc("/blocks/recent", c.HandleRecentBlocks).Methods("GET")
	api.HandleFunc("/blocks/stats", c.HandleBlockStats).Methods("GET")
	api.HandleFunc("/blocks/summaries", c.HandleBlockSummaries).Methods("GET")
	api.HandleFunc("/blocks/search", c.HandleBlockSearch).Methods("GET")
	api.HandleFunc("/blocks/{blockNumber}", c.HandleBlockDetails).Methods("GET")

	api.HandleFunc("/explorer/stats", c.HandleExplorerStats).Methods("GET")
	api.HandleFunc("/explorer/network", c.HandleExplorerNetwork).Methods("GET")
	api.HandleFunc("/explorer/overview", c.HandleExplorerOverview).Methods("GET")
	api.HandleFunc("/explorer/activity", c.HandleExplorerActivity).Methods("GET")
	api.HandleFunc("/explorer/tokens/top", c.HandleExplorerTopTokens).Methods("GET")
	api.HandleFunc("/explorer/tokens/trending", c.HandleExplorerTrendingTokens).Methods("GET")

	api.HandleFunc("/analytics/overview", c.HandleAnalyticsOverview).Methods("GET")
	api.HandleFunc("/analytics/metrics", c.HandleAnalyticsMetrics).Methods("GET")
	api.HandleFunc("/analytics/volume", c.HandleAnalyticsVolume).Methods("GET")
	api.HandleFunc("/analytics/tokens", c.HandleAnalyticsTokens).Methods("GET")
	api.HandleFunc("/analytics/tokens/top", c.HandleAnalyticsTopTokens).Methods("GET")
	api.HandleFunc("/analytics/gas", c.HandleAnalyticsGas).Methods("GET")

	return r, nil
}

// WithCORS answers preflight requests and allows any origin to read the API.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (c *Controller) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		c.App.Logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// withQueryTimeout bounds every API request by the configured query timeout.
func (c *Controller) withQueryTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.App.Config.QueryTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), c.App.Config.QueryTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
