package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/canopy-network/transferx/app/query/types"
	"github.com/canopy-network/transferx/pkg/stats"
	"go.uber.org/zap"
)

// envelope is the body of every API response.
type envelope struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data,omitempty"`
	Count      *int              `json:"count,omitempty"`
	Error      string            `json:"error,omitempty"`
	Message    string            `json:"message,omitempty"`
	QueryType  string            `json:"queryType,omitempty"`
	Pagination *stats.Pagination `json:"pagination,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// writeList sends rows with their count. A nil slice is sent as [].
func writeList[T any](w http.ResponseWriter, rows []T) {
	if rows == nil {
		rows = []T{}
	}
	n := len(rows)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: rows, Count: &n})
}

// writeFailure maps an error from parsing or a service call onto a status.
// Only validation messages reach the client; anything else is logged.
func writeFailure(app *types.App, w http.ResponseWriter, r *http.Request, err error) {
	var pe *parseError
	switch {
	case errors.As(err, &pe), errors.Is(err, stats.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, stats.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "block not found")
	default:
		fields := []zap.Field{zap.String("path", r.URL.Path), zap.Error(err)}
		if errors.Is(err, context.DeadlineExceeded) {
			app.Logger.Warn("Query timed out", fields...)
		} else {
			app.Logger.Error("Query failed", fields...)
		}
		writeError(w, http.StatusInternalServerError, "query failed")
	}
}
