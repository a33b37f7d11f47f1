package controller

import (
	"context"
	"net/http"

	"github.com/canopy-network/transferx/pkg/cache"
	"github.com/canopy-network/transferx/pkg/stats"
)

// HandleAnalyticsOverview serves the analytics page for timeRange, cached
// per range for CacheTTL.
func (c *Controller) HandleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	timeRange := stats.NormalizeTimeRange(r.URL.Query().Get("timeRange"))
	out, err := cache.Remember(r.Context(), c.App.Cache, "analytics:overview:"+timeRange, c.App.Config.CacheTTL,
		func(ctx context.Context) (stats.AnalyticsOverview, error) {
			return c.App.Services.Analytics.Overview(ctx, timeRange)
		})
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeData(w, out)
}

func (c *Controller) HandleAnalyticsMetrics(w http.ResponseWriter, r *http.Request) {
	out, err := c.App.Services.Analytics.NetworkMetrics(r.Context())
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeData(w, out)
}

func (c *Controller) HandleAnalyticsVolume(w http.ResponseWriter, r *http.Request) {
	rows, err := c.App.Services.Analytics.Volume(r.Context(), r.URL.Query().Get("timeRange"))
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleAnalyticsTokens(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 10)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Analytics.TokenDistribution(r.Context(), limit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleAnalyticsTopTokens(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 10)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Analytics.TopTokens(r.Context(), limit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleAnalyticsGas(w http.ResponseWriter, r *http.Request) {
	days, err := parseIntParam(r, "days", 7)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Analytics.Gas(r.Context(), days)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}
