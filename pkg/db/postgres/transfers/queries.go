package transfers

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transferColumns = `
	id,
	COALESCE("from", '') AS "from",
	COALESCE("to", '') AS "to",
	COALESCE(value, '0') AS value,
	COALESCE("tokenAddress", '') AS "tokenAddress",
	COALESCE("blockNumber", 0) AS "blockNumber",
	COALESCE(timestamp, 'epoch'::timestamptz) AS timestamp,
	"transactionHash"`

// numericSum renders SUM(value) as text so 256-bit totals round-trip exactly.
const numericSum = `COALESCE(SUM(CAST(value AS NUMERIC)), 0)::text`

// QueryTransfers returns the rows matching filter, ordered and sliced by page.
func (db *DB) QueryTransfers(ctx context.Context, filter db.TransferFilter, page db.Page) ([]indexer.TransferEvent, error) {
	var a args
	order, err := orderBy(page)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM transfer_events %s %s%s`,
		transferColumns, where(filter, &a), order, limitOffset(page.Limit, page.Offset, &a))

	rows, err := db.Query(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanTransfer)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfers: %w", err)
	}
	return out, nil
}

func scanTransfer(row pgx.CollectableRow) (indexer.TransferEvent, error) {
	var t indexer.TransferEvent
	err := row.Scan(&t.ID, &t.From, &t.To, &t.Value, &t.TokenAddress, &t.BlockNumber, &t.Timestamp, &t.TransactionHash)
	return t, err
}

// Summarize computes the single-row aggregate over the filtered rows.
func (db *DB) Summarize(ctx context.Context, filter db.TransferFilter) (indexer.Summary, error) {
	var a args
	query := fmt.Sprintf(`
		WITH r AS (SELECT * FROM transfer_events %s),
		bounds AS (SELECT MIN("blockNumber") AS lo, MAX("blockNumber") AS hi FROM r)
		SELECT
			(SELECT COUNT(*) FROM r),
			(SELECT COUNT(DISTINCT "from") FROM r),
			(SELECT COUNT(DISTINCT "to") FROM r),
			(SELECT COUNT(DISTINCT v.addr) FROM r CROSS JOIN LATERAL (VALUES ("from"), ("to")) AS v(addr)),
			(SELECT COUNT(DISTINCT "tokenAddress") FROM r),
			(SELECT COUNT(DISTINCT "blockNumber") FROM r),
			(SELECT %s FROM r),
			(SELECT COALESCE(AVG(CAST(value AS NUMERIC)), 0)::text FROM r),
			COALESCE((SELECT lo FROM bounds), 0),
			COALESCE((SELECT hi FROM bounds), 0),
			(SELECT MIN(timestamp) FROM r),
			(SELECT MAX(timestamp) FROM r),
			(SELECT MIN(timestamp) FROM r WHERE "blockNumber" = (SELECT lo FROM bounds)),
			(SELECT MAX(timestamp) FROM r WHERE "blockNumber" = (SELECT hi FROM bounds))
	`, where(filter, &a), numericSum)

	var (
		s                           indexer.Summary
		total, avg                  string
		first, last, loTime, hiTime *time.Time
	)
	err := db.QueryRow(ctx, query, a...).Scan(
		&s.Transfers, &s.Senders, &s.Receivers, &s.Addresses, &s.Tokens, &s.Blocks,
		&total, &avg, &s.MinBlock, &s.MaxBlock, &first, &last, &loTime, &hiTime,
	)
	if err != nil {
		return indexer.Summary{}, fmt.Errorf("failed to summarize transfers: %w", err)
	}
	if s.TotalValue, err = parseNumeric(total); err != nil {
		return indexer.Summary{}, err
	}
	if s.AvgValue, err = parseNumeric(avg); err != nil {
		return indexer.Summary{}, err
	}
	s.FirstSeen = deref(first)
	s.LastSeen = deref(last)
	s.MinBlockTime = deref(loTime)
	s.MaxBlockTime = deref(hiTime)
	return s, nil
}

// blockGroups renders the grouped-by-block CTE shared by BlockAggregates and CountBlocks.
func blockGroups(q db.BlockQuery, a *args) string {
	having := ""
	if q.MinTransfers != nil {
		having = "HAVING COUNT(*) >= " + a.add(int64(*q.MinTransfers))
	}
	if q.MaxTransfers != nil {
		if having == "" {
			having = "HAVING "
		} else {
			having += " AND "
		}
		having += "COUNT(*) <= " + a.add(int64(*q.MaxTransfers))
	}
	return fmt.Sprintf(`
		r AS (SELECT * FROM transfer_events %s),
		g AS (
			SELECT "blockNumber",
				COUNT(*) AS transfers,
				MAX(timestamp) AS ts,
				COUNT(DISTINCT "tokenAddress") AS tokens,
				%s AS total
			FROM r
			GROUP BY "blockNumber"
			%s
		)`, where(q.Filter, a), numericSum, having)
}

// BlockAggregates groups the filtered rows by block, newest first. TopToken is
// the most frequent token in each block, ties broken by address.
func (db *DB) BlockAggregates(ctx context.Context, q db.BlockQuery) ([]indexer.BlockAggregate, error) {
	var a args
	groups := blockGroups(q, &a)
	page := limitOffset(q.Limit, q.Offset, &a)
	query := fmt.Sprintf(`
		WITH %s,
		p AS (SELECT * FROM g ORDER BY "blockNumber" DESC %s),
		top AS (
			SELECT DISTINCT ON ("blockNumber") "blockNumber", "tokenAddress"
			FROM r
			WHERE "blockNumber" IN (SELECT "blockNumber" FROM p)
			GROUP BY "blockNumber", "tokenAddress"
			ORDER BY "blockNumber", COUNT(*) DESC, "tokenAddress" COLLATE "C" ASC
		)
		SELECT p."blockNumber", p.transfers, COALESCE(p.ts, 'epoch'::timestamptz), p.tokens, p.total,
			COALESCE(top."tokenAddress", '')
		FROM p LEFT JOIN top ON top."blockNumber" = p."blockNumber"
		ORDER BY p."blockNumber" DESC
	`, groups, page)

	rows, err := db.Query(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("failed to query block aggregates: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (indexer.BlockAggregate, error) {
		var (
			b     indexer.BlockAggregate
			total string
		)
		if err := row.Scan(&b.BlockNumber, &b.Transfers, &b.Timestamp, &b.UniqueTokens, &total, &b.TopToken); err != nil {
			return b, err
		}
		var err error
		b.TotalValue, err = parseNumeric(total)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan block aggregates: %w", err)
	}
	return out, nil
}

// CountBlocks counts the groups BlockAggregates would return without paging.
func (db *DB) CountBlocks(ctx context.Context, q db.BlockQuery) (uint64, error) {
	var a args
	query := fmt.Sprintf(`WITH %s SELECT COUNT(*) FROM g`, blockGroups(q, &a))
	var n uint64
	if err := db.QueryRow(ctx, query, a...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return n, nil
}

// TokenAggregates groups the filtered rows by token, busiest first.
func (db *DB) TokenAggregates(ctx context.Context, q db.TokenQuery) ([]indexer.TokenAggregate, error) {
	var a args
	filter := where(q.Filter, &a)
	limit := limitOffset(q.Limit, 0, &a)
	query := fmt.Sprintf(`
		WITH r AS (SELECT * FROM transfer_events %s),
		g AS (
			SELECT "tokenAddress",
				COUNT(*) AS transfers,
				%s AS total,
				COALESCE(AVG(CAST(value AS NUMERIC)), 0)::text AS avg,
				COUNT(DISTINCT "from") AS senders,
				COUNT(DISTINCT "to") AS receivers,
				MAX(timestamp) AS last_activity
			FROM r
			GROUP BY "tokenAddress"
			ORDER BY COUNT(*) DESC, "tokenAddress" COLLATE "C" ASC
			%s
		),
		addrs AS (
			SELECT r."tokenAddress", COUNT(DISTINCT v.addr) AS n
			FROM r CROSS JOIN LATERAL (VALUES (r."from"), (r."to")) AS v(addr)
			WHERE r."tokenAddress" IN (SELECT "tokenAddress" FROM g)
			GROUP BY r."tokenAddress"
		)
		SELECT COALESCE(g."tokenAddress", ''), g.transfers, g.total, g.avg, g.senders, g.receivers,
			COALESCE(addrs.n, 0), COALESCE(g.last_activity, 'epoch'::timestamptz)
		FROM g LEFT JOIN addrs ON addrs."tokenAddress" = g."tokenAddress"
		ORDER BY g.transfers DESC, g."tokenAddress" COLLATE "C" ASC
	`, filter, numericSum, limit)

	rows, err := db.Query(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("failed to query token aggregates: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (indexer.TokenAggregate, error) {
		var (
			t          indexer.TokenAggregate
			total, avg string
		)
		if err := row.Scan(&t.TokenAddress, &t.Transfers, &total, &avg, &t.Senders, &t.Receivers, &t.Addresses, &t.LastActivity); err != nil {
			return t, err
		}
		var err error
		if t.TotalValue, err = parseNumeric(total); err != nil {
			return t, err
		}
		t.AvgValue, err = parseNumeric(avg)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan token aggregates: %w", err)
	}
	return out, nil
}

// RecentTokenActivity counts tokens among the window newest transfers.
func (db *DB) RecentTokenActivity(ctx context.Context, window, limit int) ([]indexer.TokenAggregate, error) {
	var a args
	query := fmt.Sprintf(`
		WITH recent AS (
			SELECT "tokenAddress", timestamp FROM transfer_events
			ORDER BY timestamp DESC NULLS LAST, id DESC
			LIMIT %s
		)
		SELECT COALESCE("tokenAddress", ''), COUNT(*), COALESCE(MAX(timestamp), 'epoch'::timestamptz)
		FROM recent
		GROUP BY "tokenAddress"
		ORDER BY COUNT(*) DESC, "tokenAddress" COLLATE "C" ASC
		%s
	`, a.add(window), limitOffset(limit, 0, &a))

	rows, err := db.Query(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent token activity: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (indexer.TokenAggregate, error) {
		var t indexer.TokenAggregate
		err := row.Scan(&t.TokenAddress, &t.Transfers, &t.LastActivity)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan recent token activity: %w", err)
	}
	return out, nil
}

// AddressActivity ranks every address by the transfers it sent or received.
func (db *DB) AddressActivity(ctx context.Context, limit int) ([]indexer.AddressActivity, error) {
	var a args
	query := fmt.Sprintf(`
		WITH sides AS (
			SELECT "from" AS address, 1 AS sent, 0 AS received FROM transfer_events WHERE "from" IS NOT NULL
			UNION ALL
			SELECT "to", 0, 1 FROM transfer_events WHERE "to" IS NOT NULL
		)
		SELECT address, SUM(sent)::bigint, SUM(received)::bigint, COUNT(*)
		FROM sides
		GROUP BY address
		ORDER BY COUNT(*) DESC, address COLLATE "C" ASC
		%s
	`, limitOffset(limit, 0, &a))

	rows, err := db.Query(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("failed to query address activity: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (indexer.AddressActivity, error) {
		var r indexer.AddressActivity
		err := row.Scan(&r.Address, &r.Sent, &r.Received, &r.Count)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan address activity: %w", err)
	}
	return out, nil
}

// TimeBuckets slices [start, start+n*width) into n buckets. Empty slots are
// returned zeroed so callers can chart them directly.
func (db *DB) TimeBuckets(ctx context.Context, start time.Time, width time.Duration, n int) ([]indexer.Bucket, error) {
	if n <= 0 {
		return nil, nil
	}
	buckets := make([]indexer.Bucket, n)
	for i := range buckets {
		buckets[i] = indexer.Bucket{Index: i, Start: start.Add(time.Duration(i) * width), Volume: decimal.Zero}
	}

	end := start.Add(time.Duration(n) * width)
	query := `
		SELECT FLOOR(EXTRACT(EPOCH FROM (timestamp - $1::timestamptz)) / $3::float8)::int AS idx,
			COUNT(*),
			COUNT(DISTINCT "blockNumber"),
			` + numericSum + `
		FROM transfer_events
		WHERE timestamp >= $1::timestamptz AND timestamp < $2::timestamptz
		GROUP BY idx
	`
	rows, err := db.Query(ctx, query, start, end, width.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to query time buckets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx   int
			b     indexer.Bucket
			total string
		)
		if err := rows.Scan(&idx, &b.Transfers, &b.Blocks, &total); err != nil {
			return nil, fmt.Errorf("failed to scan time bucket: %w", err)
		}
		if idx < 0 || idx >= n {
			continue
		}
		if b.Volume, err = parseNumeric(total); err != nil {
			return nil, err
		}
		b.Index, b.Start = idx, buckets[idx].Start
		buckets[idx] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read time buckets: %w", err)
	}
	return buckets, nil
}

func parseNumeric(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse numeric %q: %w", s, err)
	}
	return d, nil
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
