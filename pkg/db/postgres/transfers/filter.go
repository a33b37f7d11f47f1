package transfers

import (
	"fmt"
	"math"
	"strings"

	"github.com/canopy-network/transferx/pkg/db"
)

// sortExpr maps the public sort names onto SQL. value is stored as text and
// sorts numerically; text columns sort bytewise to match address ordering.
var sortExpr = map[string]string{
	"id":              `id`,
	"from":            `"from" COLLATE "C"`,
	"to":              `"to" COLLATE "C"`,
	"value":           `CAST(value AS NUMERIC)`,
	"tokenAddress":    `"tokenAddress" COLLATE "C"`,
	"blockNumber":     `"blockNumber"`,
	"timestamp":       `timestamp`,
	"transactionHash": `"transactionHash" COLLATE "C"`,
}

// args accumulates positional parameters.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// where renders f as a WHERE clause, or "" when f filters nothing.
func where(f db.TransferFilter, a *args) string {
	var conds []string

	if f.Address != "" {
		p := a.add(f.Address)
		switch f.Direction {
		case db.Sent:
			conds = append(conds, `"from" = `+p)
		case db.Received:
			conds = append(conds, `"to" = `+p)
		default:
			conds = append(conds, fmt.Sprintf(`("from" = %s OR "to" = %s)`, p, p))
		}
	}
	if f.TokenAddress != "" {
		conds = append(conds, `"tokenAddress" = `+a.add(f.TokenAddress))
	}
	// blockNumber is BIGINT; bounds past MaxInt64 match nothing or everything
	if f.FromBlock != nil {
		if *f.FromBlock > math.MaxInt64 {
			conds = append(conds, "FALSE")
		} else {
			conds = append(conds, `"blockNumber" >= `+a.add(int64(*f.FromBlock)))
		}
	}
	if f.ToBlock != nil && *f.ToBlock <= math.MaxInt64 {
		conds = append(conds, `"blockNumber" <= `+a.add(int64(*f.ToBlock)))
	}
	if !f.Since.IsZero() {
		conds = append(conds, `timestamp >= `+a.add(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, `timestamp < `+a.add(f.Until))
	}

	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func orderBy(p db.Page) (string, error) {
	col := p.SortBy
	if col == "" {
		col = "timestamp"
	}
	expr, ok := sortExpr[col]
	if !ok {
		return "", fmt.Errorf("%w: %q", db.ErrInvalidSort, col)
	}
	dir := "ASC"
	if p.SortDesc {
		dir = "DESC"
	}
	// NULL hashes and values sort last in either direction
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST, id %s", expr, dir, dir), nil
}

func limitOffset(limit, offset int, a *args) string {
	var sb strings.Builder
	if limit > 0 {
		sb.WriteString(" LIMIT " + a.add(limit))
	}
	if offset > 0 {
		sb.WriteString(" OFFSET " + a.add(offset))
	}
	return sb.String()
}
