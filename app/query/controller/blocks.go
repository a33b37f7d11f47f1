package controller

import (
	"net/http"
	"strconv"

	"github.com/canopy-network/transferx/pkg/stats"
	"github.com/gorilla/mux"
)

const defaultSummaryLimit = 10

// HandleBlocks pages blocks with optional transaction-count and date filters.
func (c *Controller) HandleBlocks(w http.ResponseWriter, r *http.Request) {
	page, err := parseIntParam(r, "page", 1)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	limit, err := parseLimit(r, 20)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	minTx, err := parseUintParam(r, "minTransactions")
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	maxTx, err := parseUintParam(r, "maxTransactions")
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}

	out, err := c.App.Services.Blocks.Paginated(r.Context(), stats.BlockPageOptions{
		Page:            page,
		Limit:           limit,
		MinTransactions: minTx,
		MaxTransactions: maxTx,
		DateRange:       r.URL.Query().Get("dateRange"),
	})
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	if out.Blocks == nil {
		out.Blocks = []stats.BlockSummary{}
	}
	n := len(out.Blocks)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: out.Blocks, Count: &n, Pagination: &out.Pagination})
}

func (c *Controller) HandleRecentBlocks(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultRecentLimit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	offset, err := parseOffset(r)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Transfers.RecentBlocks(r.Context(), limit, offset)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleBlockStats(w http.ResponseWriter, r *http.Request) {
	out, err := c.App.Services.Blocks.Stats(r.Context())
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeData(w, out)
}

func (c *Controller) HandleBlockSummaries(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultSummaryLimit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Blocks.Summaries(r.Context(), limit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleBlockSearch(w http.ResponseWriter, r *http.Request) {
	rows, err := c.App.Services.Blocks.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

// HandleBlockDetails returns a single block with its transfers.
// Returns 404 if the block has no transfers, 400 for a non-numeric number.
func (c *Controller) HandleBlockDetails(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseUint(mux.Vars(r)["blockNumber"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block number")
		return
	}
	details, err := c.App.Services.Blocks.Details(r.Context(), number)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeData(w, details)
}
