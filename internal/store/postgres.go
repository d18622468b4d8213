package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/linktrail/internal/accounting"
	"github.com/serroba/linktrail/internal/analytics"
	"github.com/serroba/linktrail/internal/shortener"
)

const linkColumns = `id, owner_id, code, destination, status, expires_at, remarks, clicks, created_at`

// PostgresStore is the PostgreSQL implementation of the link, accounting and
// visit stores.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Create(ctx context.Context, link *shortener.Link) error {
	query := `
		INSERT INTO links (` + linkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := p.pool.Exec(ctx, query,
		link.ID,
		link.OwnerID,
		string(link.Code),
		link.Destination,
		string(link.Status),
		link.ExpiresAt,
		link.Remarks,
		link.Clicks,
		link.CreatedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "links_code_key" {
		return shortener.ErrCodeConflict
	}

	return err
}

func (p *PostgresStore) GetByCode(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE code = $1`, string(code))

	return scanLink(row)
}

func (p *PostgresStore) GetByID(ctx context.Context, id string) (*shortener.Link, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE id = $1`, id)

	return scanLink(row)
}

func (p *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]*shortener.Link, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+linkColumns+` FROM links WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*shortener.Link

	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}

		links = append(links, link)
	}

	return links, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, link *shortener.Link) error {
	query := `
		UPDATE links
		SET destination = $2, remarks = $3, expires_at = $4, status = $5
		WHERE id = $1
	`

	tag, err := p.pool.Exec(ctx, query,
		link.ID,
		link.Destination,
		link.Remarks,
		link.ExpiresAt,
		string(link.Status),
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) SetStatus(ctx context.Context, id string, status shortener.Status) error {
	tag, err := p.pool.Exec(ctx, `UPDATE links SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

// Delete removes the link and its visits in one transaction.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM visits WHERE link_id = $1`, id); err != nil {
			return fmt.Errorf("delete visits: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete link: %w", err)
		}

		if tag.RowsAffected() == 0 {
			return shortener.ErrNotFound
		}

		return nil
	})
}

func (p *PostgresStore) HasVisit(ctx context.Context, linkID, fingerprint string) (bool, error) {
	var exists bool

	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM visits WHERE link_id = $1 AND fingerprint = $2)`,
		linkID, fingerprint,
	).Scan(&exists)

	return exists, err
}

// RecordVisitIfNew inserts the visit and bumps the counter in one statement.
// The unique (link_id, fingerprint) constraint decides the race; the counter
// only moves when the insert produced a row.
func (p *PostgresStore) RecordVisitIfNew(ctx context.Context, visit *shortener.Visit) (bool, error) {
	query := `
		WITH inserted AS (
			INSERT INTO visits (id, link_id, fingerprint, device, ip_address, user_agent, visited_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (link_id, fingerprint) DO NOTHING
			RETURNING link_id
		)
		UPDATE links SET clicks = clicks + 1
		WHERE id IN (SELECT link_id FROM inserted)
	`

	tag, err := p.pool.Exec(ctx, query,
		visit.ID,
		visit.LinkID,
		visit.Fingerprint,
		visit.Device,
		visit.IPAddress,
		visit.UserAgent,
		visit.VisitedAt,
	)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

func (p *PostgresStore) ListVisits(ctx context.Context, linkIDs []string) ([]*shortener.Visit, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, link_id, fingerprint, device, ip_address, user_agent, visited_at
		FROM visits
		WHERE link_id = ANY($1)
		ORDER BY visited_at DESC
	`, linkIDs)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*shortener.Visit, error) {
		var v shortener.Visit

		err := row.Scan(&v.ID, &v.LinkID, &v.Fingerprint, &v.Device, &v.IPAddress, &v.UserAgent, &v.VisitedAt)

		return &v, err
	})
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Shutdown is a no-op; the pool is owned by the container.
func (p *PostgresStore) Shutdown() error {
	return nil
}

func scanLink(row pgx.Row) (*shortener.Link, error) {
	var (
		link   shortener.Link
		code   string
		status string
	)

	err := row.Scan(
		&link.ID,
		&link.OwnerID,
		&code,
		&link.Destination,
		&status,
		&link.ExpiresAt,
		&link.Remarks,
		&link.Clicks,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	link.Code = shortener.Code(code)
	link.Status = shortener.Status(status)

	return &link, nil
}

var (
	_ shortener.Repository = (*PostgresStore)(nil)
	_ accounting.Store     = (*PostgresStore)(nil)
	_ analytics.VisitStore = (*PostgresStore)(nil)
)
