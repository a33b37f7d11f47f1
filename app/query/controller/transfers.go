package controller

import (
	"context"
	"net/http"

	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/canopy-network/transferx/pkg/stats"
	"github.com/gorilla/mux"
)

const (
	defaultListLimit   = 100
	defaultRecentLimit = 10
)

type transferQuery func(ctx context.Context, opts stats.ListOptions) ([]indexer.TransferEvent, error)

func (c *Controller) serveTransfers(w http.ResponseWriter, r *http.Request, defaultLimit int, query transferQuery) {
	opts, err := parseListOptions(r, defaultLimit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := query(r.Context(), opts)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleRecentTransfers(w http.ResponseWriter, r *http.Request) {
	c.serveTransfers(w, r, defaultRecentLimit, c.App.Services.Transfers.Recent)
}

// HandleTransfersByAddress returns transfers sent or received by the address.
func (c *Controller) HandleTransfersByAddress(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	c.serveTransfers(w, r, defaultListLimit, func(ctx context.Context, opts stats.ListOptions) ([]indexer.TransferEvent, error) {
		return c.App.Services.Transfers.ByAddress(ctx, addr, opts)
	})
}

func (c *Controller) HandleTransfersFrom(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	c.serveTransfers(w, r, defaultListLimit, func(ctx context.Context, opts stats.ListOptions) ([]indexer.TransferEvent, error) {
		return c.App.Services.Transfers.From(ctx, addr, opts)
	})
}

func (c *Controller) HandleTransfersTo(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	c.serveTransfers(w, r, defaultListLimit, func(ctx context.Context, opts stats.ListOptions) ([]indexer.TransferEvent, error) {
		return c.App.Services.Transfers.To(ctx, addr, opts)
	})
}

func (c *Controller) HandleTokenTransfers(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	c.serveTransfers(w, r, defaultListLimit, func(ctx context.Context, opts stats.ListOptions) ([]indexer.TransferEvent, error) {
		return c.App.Services.Transfers.ByToken(ctx, token, opts)
	})
}

func (c *Controller) HandleAddressTokenTransfers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, token := vars["address"], vars["token"]
	c.serveTransfers(w, r, defaultListLimit, func(ctx context.Context, opts stats.ListOptions) ([]indexer.TransferEvent, error) {
		return c.App.Services.Transfers.ByAddressAndToken(ctx, addr, token, opts)
	})
}

// HandleBaseIndex lists a token's transfers. An empty result is still a
// success and carries a message naming the address.
func (c *Controller) HandleBaseIndex(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["address"]
	opts, err := parseListOptions(r, defaultListLimit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Transfers.ByToken(r.Context(), token, opts)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusOK, envelope{
			Success:   true,
			Data:      []indexer.TransferEvent{},
			Message:   "No record found for the address " + token,
			QueryType: "address",
		})
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleTopAddresses(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultRecentLimit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	rows, err := c.App.Services.Transfers.TopAddresses(r.Context(), limit)
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeList(w, rows)
}

func (c *Controller) HandleAddressDetails(w http.ResponseWriter, r *http.Request) {
	details, err := c.App.Services.Transfers.AddressDetails(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	if details.Transfers == nil {
		details.Transfers = []indexer.TransferEvent{}
	}
	writeData(w, details)
}

func (c *Controller) HandleNetworkStats(w http.ResponseWriter, r *http.Request) {
	summary, err := c.App.Services.Transfers.Stats(r.Context())
	if err != nil {
		writeFailure(c.App, w, r, err)
		return
	}
	writeData(w, summary)
}
