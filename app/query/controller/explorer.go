package controller

import (
	"net/http"

	"github.com/canopy-network/transferx/pkg/cache"
)

// HandleExplorerStats serves the whole explorer page, cached for CacheTTL.
func (c *Controller) HandleExplorerStats(w http.ResponseWriter, r *http.Request) {
	out, err := cache.Remember(r.Context(), c.App.Cache, "explorer:stats", c.App.Config.CacheTTL, c.App.Services.Explorer.Stats)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeData(w, out)
}

func (c *Controller) HandleExplorerNetwork(w http.ResponseWriter, r *http.Request) {
	out, err := c.App.Services.Explorer.NetworkStats(r.Context())
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeData(w, out)
}

func (c *Controller) HandleExplorerOverview(w http.ResponseWriter, r *http.Request) {
	out, err := c.App.Services.Explorer.Overview(r.Context())
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeData(w, out)
}

func (c *Controller) HandleExplorerActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 20)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Explorer.RecentActivity(r.Context(), limit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleExplorerTopTokens(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 10)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Explorer.TopTokens(r.Context(), limit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleExplorerTrendingTokens(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 5)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Explorer.TrendingTokens(r.Context(), limit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}
