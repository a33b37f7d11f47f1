package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/stats"
)

// parseListOptions reads limit, offset, sortBy and sortDir. An unrecognised
// sortDir keeps the default newest-first order.
func parseListOptions(r *http.Request, defaultLimit int) (stats.ListOptions, error) {
	opts := stats.DefaultListOptions()
	qs := r.URL.Query()

	limit, err := parseLimit(r, defaultLimit)
	if err != nil {
		return stats.ListOptions{}, err
	}
	opts.Limit = limit

	if v := qs.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return stats.ListOptions{}, errInvalidOffset
		}
		opts.Offset = n
	}

	if v := qs.Get("sortBy"); v != "" {
		if !db.ValidSort(v) {
			return stats.ListOptions{}, errInvalidSortBy
		}
		opts.SortBy = v
	}

	switch strings.ToUpper(qs.Get("sortDir")) {
	case "ASC":
		opts.SortDesc = false
	case "DESC":
		opts.SortDesc = true
	}

	return opts, nil
}

// parseLimit reads limit in [1, stats.MaxLimit], def when absent.
func parseLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > stats.MaxLimit {
		return 0, errInvalidLimit
	}
	return n, nil
}

// parseOffset reads a non-negative offset, zero when absent.
func parseOffset(r *http.Request) (int, error) {
	v := r.URL.Query().Get("offset")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errInvalidOffset
	}
	return n, nil
}

// parseIntParam reads a positive integer query parameter, def when absent.
func parseIntParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, &parseError{msg: "invalid " + name}
	}
	return n, nil
}

// parseUintParam reads an optional unsigned query parameter.
func parseUintParam(r *http.Request, name string) (*uint64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, &parseError{msg: "invalid " + name}
	}
	return &n, nil
}

var (
	errInvalidLimit  = &parseError{msg: "invalid limit, must be between 1 and " + strconv.Itoa(stats.MaxLimit)}
	errInvalidOffset = &parseError{msg: "invalid offset"}
	errInvalidSortBy = &parseError{msg: "invalid sortBy, must be one of " + strings.Join(db.SortColumns, ", ")}
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }
