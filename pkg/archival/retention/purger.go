package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/archival/schema"
	"mercator-hq/archivist/pkg/database"
)

// PurgerOption configures a Purger.
type PurgerOption func(*Purger)

// WithPurgeClock sets the time source used to compute purge thresholds.
func WithPurgeClock(now func() time.Time) PurgerOption {
	return func(p *Purger) {
		p.now = now
	}
}

// Purger deletes expired rows from archive tables.
type Purger struct {
	archive *database.DB
	schemas schema.Describer
	logger  *slog.Logger
	now     func() time.Time
}

// NewPurger creates a Purger for the archive database.
func NewPurger(archive *database.DB, schemas schema.Describer, opts ...PurgerOption) *Purger {
	p := &Purger{
		archive: archive,
		schemas: schemas,
		logger:  slog.Default().With("component", "archival.retention"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PurgeExpired deletes rows of archiveTable whose ageColumn is older than
// deleteAfter units, in a single transaction, and returns the count.
// A zero deleteAfter purges every row older than now.
func (p *Purger) PurgeExpired(ctx context.Context, archiveTable string, deleteAfter int64, unit archival.TimeUnit, ageColumn string) (int64, error) {
	if err := archival.ValidateIdentifier(archiveTable); err != nil {
		return 0, err
	}
	if err := archival.ValidateIdentifier(ageColumn); err != nil {
		return 0, err
	}

	cutoff, err := archival.ComputeThreshold(p.now(), deleteAfter, unit)
	if err != nil {
		return 0, err
	}

	t, err := p.schemas.Describe(ctx, p.archive, archiveTable)
	if err != nil {
		return 0, err
	}
	if !t.HasColumn(ageColumn) {
		return 0, &archival.ColumnNotFoundError{Table: archiveTable, Column: ageColumn}
	}

	p.logger.Debug("purging expired archive rows",
		"table", archiveTable,
		"cutoff_time", cutoff,
	)

	query, args, err := p.archive.Builder().
		Delete(archiveTable).
		Where(goqu.C(ageColumn).Lt(cutoff)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, err
	}

	tx, err := p.archive.BeginTx(ctx, nil)
	if err != nil {
		return 0, archival.NewStorageError(p.archive.Name(), "begin", archiveTable, err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		return 0, archival.NewStorageError(p.archive.Name(), "delete", archiveTable, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, archival.NewStorageError(p.archive.Name(), "delete", archiveTable, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, archival.NewStorageError(p.archive.Name(), "commit", archiveTable, err)
	}

	if deleted > 0 {
		p.logger.Info("purged expired archive rows",
			"table", archiveTable,
			"deleted_count", deleted,
			"cutoff_time", cutoff,
		)
	}
	return deleted, nil
}
