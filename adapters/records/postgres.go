package records

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Skryldev/photo-processor/config"
	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres stores photo records in the photos table.
type Postgres struct {
	pool *pgxpool.Pool
	db   *sql.DB // for migrations
}

// OpenPostgres connects, pings and optionally migrates.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	const op = "records.OpenPostgres"

	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	p := &Postgres{pool: pool, db: stdlib.OpenDBFromPool(pool)}
	if cfg.RunMigrations {
		if err := p.Migrate(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return p, nil
}

// Migrate applies the embedded goose migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, p.db, "migrations"); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.db.Close()
	p.pool.Close()
}

const getPhoto = `
SELECT id, COALESCE(park_id, ''), COALESCE(owner_id, ''), status, outputs, COALESCE(error, ''), updated_at
FROM photos
WHERE id = $1`

func (p *Postgres) Get(ctx context.Context, photoID string) (*core.PhotoRecord, error) {
	var (
		rec     core.PhotoRecord
		status  string
		outputs []byte
	)
	err := p.pool.QueryRow(ctx, getPhoto, photoID).Scan(
		&rec.ID, &rec.ParkID, &rec.OwnerID, &status, &outputs, &rec.Error, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.CategoryRecord, "postgres.get",
			fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, photoID))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRecord, "postgres.get", err)
	}
	rec.Status = core.Status(status)
	if len(outputs) > 0 {
		if err := json.Unmarshal(outputs, &rec.Outputs); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryRecord, "postgres.get.outputs", err)
		}
	}
	return &rec, nil
}

// updatePhoto keeps updated_at strictly increasing even across clock skew
// between workers.
const updatePhoto = `
UPDATE photos
SET status = $2,
    outputs = $3,
    error = NULLIF($4, ''),
    updated_at = GREATEST($5, updated_at + interval '1 microsecond')
WHERE id = $1`

func (p *Postgres) Update(ctx context.Context, photoID string, u core.RecordUpdate) error {
	var outputs []byte
	if u.Outputs != nil {
		raw, err := json.Marshal(u.Outputs)
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryRecord, "postgres.update.outputs", err)
		}
		outputs = raw
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}

	tag, err := p.pool.Exec(ctx, updatePhoto, photoID, string(u.Status), outputs, u.Error, u.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryRecord, "postgres.update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CategoryRecord, "postgres.update",
			fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, photoID))
	}
	return nil
}
