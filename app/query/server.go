package query

import (
	"net/http"

	"github.com/canopy-network/transferx/app/query/controller"
	"github.com/canopy-network/transferx/app/query/types"
	"go.uber.org/zap"
)

// NewServer builds the router and attaches an http.Server to app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := app.Config.Addr

	app.Server = &http.Server{Addr: addr, Handler: controller.WithCORS(router)}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
