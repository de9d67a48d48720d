package redist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nordvik-erp/costredist/internal/platform/db"
)

// Table names in the ledger schema. The two legacy buffer names were used by
// earlier releases of the batch and are dropped on every run.
const (
	sourceTable    = "gl_transactions"
	interfaceTable = "gl_interface"
	batchTable     = "kf_batches"
	orderTable     = "kf_posting_orders"
	bufferRegistry = "kf_buffer_registry"
	bufferPrefix   = "kf_buffer_"
	legacyBufferA  = "kf_buffer"
	legacyBufferB  = "zkf_fordel_buffer"
)

// staleBufferAge is how long a registered buffer may linger before the next
// run sweeps it. Long enough that a concurrent run for another client is
// never swept mid-flight.
const staleBufferAge = 24 * time.Hour

// BufferName derives the run-scoped staging table name from a run id.
func BufferName(runID string) string {
	return bufferPrefix + strings.ReplaceAll(runID, "-", "_")
}

// Repository provides persistence for the redistribution pipeline.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a redistribution repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Aggregate sums source ledger amounts per (client, account, period) for the
// rule's account range inside the inclusive period window. Account and period
// columns are text, so both ranges compare lexically, matching the source
// store's natural ordering for its fixed-width codes. An empty result is
// valid and yields no buffer rows.
func (r *Repository) Aggregate(ctx context.Context, client, periodFrom, periodTo string, rule Rule) ([]AggregateRow, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("redist repo not initialised")
	}
	const query = `
SELECT client, account, period, SUM(amount)::text
FROM ` + sourceTable + `
WHERE client = $1
  AND period BETWEEN $2 AND $3
  AND account BETWEEN $4 AND $5
GROUP BY client, account, period
ORDER BY account, period`
	rows, err := r.pool.Query(ctx, query, client, periodFrom, periodTo, rule.AccountFrom, rule.AccountTo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceQuery, err)
	}
	defer rows.Close()
	var aggs []AggregateRow
	for rows.Next() {
		var agg AggregateRow
		var sum string
		if err := rows.Scan(&agg.Client, &agg.Account, &agg.Period, &sum); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceQuery, err)
		}
		if agg.Sum, err = decimal.NewFromString(sum); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceQuery, err)
		}
		aggs = append(aggs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceQuery, err)
	}
	return aggs, nil
}

// RebuildBuffer drops the legacy buffer tables plus any registered run-scoped
// buffers left behind by a crashed run, then creates a fresh staging table
// under the given name. Both cold start (no buffer) and stale prior state
// converge on the same create step; the sequence is intentionally not
// transactional, matching the legacy lifecycle, and calling it twice with the
// same name yields the same empty table.
func (r *Repository) RebuildBuffer(ctx context.Context, buffer string) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("redist repo not initialised")
	}
	if err := r.ensureBufferRegistry(ctx); err != nil {
		return err
	}
	stale, err := r.staleBuffers(ctx)
	if err != nil {
		return err
	}
	for _, name := range append(stale, legacyBufferA, legacyBufferB, buffer) {
		if err := r.dropBuffer(ctx, name); err != nil {
			return err
		}
	}
	create := `
CREATE TABLE ` + pgx.Identifier{buffer}.Sanitize() + ` (
	id bigserial PRIMARY KEY,
	client text NOT NULL,
	amount numeric(18,2) NOT NULL,
	account text NOT NULL,
	dim_1 text NOT NULL DEFAULT '',
	dim_2 text NOT NULL DEFAULT '',
	dim_3 text NOT NULL DEFAULT '',
	dim_4 text NOT NULL DEFAULT '',
	dim_5 text NOT NULL DEFAULT '',
	dim_6 text NOT NULL DEFAULT '',
	period text NOT NULL
)`
	if _, err := r.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrPersist, buffer, err)
	}
	const register = `
INSERT INTO ` + bufferRegistry + ` (buffer, created_at)
VALUES ($1, $2)
ON CONFLICT (buffer) DO UPDATE SET created_at = EXCLUDED.created_at`
	if _, err := r.pool.Exec(ctx, register, buffer, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: register buffer %s: %v", ErrPersist, buffer, err)
	}
	return nil
}

func (r *Repository) ensureBufferRegistry(ctx context.Context) error {
	const create = `
CREATE TABLE IF NOT EXISTS ` + bufferRegistry + ` (
	buffer text PRIMARY KEY,
	created_at timestamptz NOT NULL
)`
	if _, err := r.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("%w: ensure buffer registry: %v", ErrPersist, err)
	}
	return nil
}

// staleBuffers lists registered buffers old enough to be crash leftovers.
func (r *Repository) staleBuffers(ctx context.Context) ([]string, error) {
	const query = `SELECT buffer FROM ` + bufferRegistry + ` WHERE created_at < $1`
	rows, err := r.pool.Query(ctx, query, time.Now().UTC().Add(-staleBufferAge))
	if err != nil {
		return nil, fmt.Errorf("%w: list stale buffers: %v", ErrPersist, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: list stale buffers: %v", ErrPersist, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list stale buffers: %v", ErrPersist, err)
	}
	return names, nil
}

func (r *Repository) dropBuffer(ctx context.Context, name string) error {
	drop := "DROP TABLE IF EXISTS " + pgx.Identifier{name}.Sanitize()
	if _, err := r.pool.Exec(ctx, drop); err != nil {
		return fmt.Errorf("%w: drop %s: %v", ErrPersist, name, err)
	}
	const unregister = `DELETE FROM ` + bufferRegistry + ` WHERE buffer = $1`
	if _, err := r.pool.Exec(ctx, unregister, name); err != nil {
		return fmt.Errorf("%w: unregister %s: %v", ErrPersist, name, err)
	}
	return nil
}

// InsertBufferRows appends rows to the staging table and returns their ids in
// input order. Existing buffer content is never touched.
func (r *Repository) InsertBufferRows(ctx context.Context, buffer string, rows []BufferRow) ([]int64, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("redist repo not initialised")
	}
	query := `
INSERT INTO ` + pgx.Identifier{buffer}.Sanitize() + ` (client, amount, account, period)
VALUES ($1, $2::numeric, $3, $4)
RETURNING id`
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		var id int64
		err := r.pool.QueryRow(ctx, query, row.Client, row.Amount.String(), row.Account, row.Period).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("%w: insert buffer row: %v", ErrPersist, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ApplyDimensions sets the dimension codes on exactly the given buffer rows.
// Scoping by id rather than account keeps one rule's enrichment from touching
// rows an earlier rule wrote to the same account.
func (r *Repository) ApplyDimensions(ctx context.Context, buffer string, ids []int64, dims DimensionSet) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("redist repo not initialised")
	}
	if len(ids) == 0 {
		return nil
	}
	query := `
UPDATE ` + pgx.Identifier{buffer}.Sanitize() + `
SET dim_1 = $1, dim_2 = $2, dim_3 = $3, dim_4 = $4, dim_5 = $5, dim_6 = $6
WHERE id = ANY($7)`
	_, err := r.pool.Exec(ctx, query, dims.Dim1, dims.Dim2, dims.Dim3, dims.Dim4, dims.Dim5, dims.Dim6, ids)
	if err != nil {
		return fmt.Errorf("%w: apply dimensions: %v", ErrPersist, err)
	}
	return nil
}

// Materialize copies every buffer row into the interface table under the
// batch id, assigning sequence numbers 1..N in buffer insertion order, and
// registers the batch. Both writes happen in one transaction, so the batch
// either fully appears or not at all.
func (r *Repository) Materialize(ctx context.Context, buffer, batchID string) (int, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("redist repo not initialised")
	}
	insert := `
INSERT INTO ` + interfaceTable + ` (
	batch_id, client, account,
	dim_1, dim_2, dim_3, dim_4, dim_5, dim_6,
	amount, cur_amount, currency, interface, trans_type,
	period, description, sequence_no, dc_flag)
SELECT
	$1, client, account,
	dim_1, dim_2, dim_3, dim_4, dim_5, dim_6,
	amount, amount, $2, $3, $4,
	period, $5, row_number() OVER (ORDER BY id), $6
FROM ` + pgx.Identifier{buffer}.Sanitize()
	var count int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insert,
			batchID, CurrencySEK, InterfaceBI, TransTypeGL, DescriptionTag, DCFlagDefault)
		if err != nil {
			return fmt.Errorf("%w: materialise batch %s: %v", ErrPersist, batchID, err)
		}
		count = int(tag.RowsAffected())
		const register = `
INSERT INTO ` + batchTable + ` (batch_id, row_count, created_at)
VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, register, batchID, count, time.Now().UTC()); err != nil {
			return fmt.Errorf("%w: register batch %s: %v", ErrPersist, batchID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CreatePostingOrder records the handoff of a batch to the posting queue and
// returns the order number.
func (r *Repository) CreatePostingOrder(ctx context.Context, batchID string) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("redist repo not initialised")
	}
	const query = `
INSERT INTO ` + orderTable + ` (batch_id, status, created_at)
VALUES ($1, 'SUBMITTED', $2)
RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, query, batchID, time.Now().UTC()).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: create posting order: %v", ErrPersist, err)
	}
	return id, nil
}

// MarkPostingOrder updates a posting order's status once the queue has
// picked it up.
func (r *Repository) MarkPostingOrder(ctx context.Context, orderID int64, status string) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("redist repo not initialised")
	}
	const query = `UPDATE ` + orderTable + ` SET status = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, orderID, status); err != nil {
		return fmt.Errorf("%w: mark posting order %d: %v", ErrPersist, orderID, err)
	}
	return nil
}
