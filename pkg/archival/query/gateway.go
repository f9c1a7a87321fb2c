package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/database"
	"mercator-hq/archivist/pkg/security/auth"
	"mercator-hq/archivist/pkg/telemetry/tracing"
)

// Query status labels passed to Recorder.RecordQuery.
const (
	StatusOK       = "ok"
	StatusDenied   = "denied"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
	StatusError    = "error"
)

// Record is one archived row keyed by column name.
type Record map[string]any

// PolicyLookup finds the policy of a source table.
type PolicyLookup interface {
	GetPolicy(ctx context.Context, table string) (*archival.RetentionPolicy, error)
}

// AccessChecker decides whether a caller may read a table.
type AccessChecker interface {
	CheckTableAccess(ctx context.Context, id auth.Identity, table string) error
}

// Recorder receives query telemetry.
type Recorder interface {
	RecordQuery(table, status string, duration time.Duration)
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout bounds each query.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(r Recorder) GatewayOption {
	return func(g *Gateway) {
		g.recorder = r
	}
}

// Gateway serves paginated, access-checked reads of archive tables.
type Gateway struct {
	archive  *database.DB
	policies PolicyLookup
	access   AccessChecker
	limits   Limits
	timeout  time.Duration
	recorder Recorder
	logger   *slog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(archive *database.DB, policies PolicyLookup, access AccessChecker, limits Limits, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		archive:  archive,
		policies: policies,
		access:   access,
		limits:   limits.withDefaults(),
		logger:   slog.Default().With("component", "archival.query"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// QueryArchive returns one page of req.Table's archive, filtered by the
// inclusive date range and ordered by the policy's age column.
//
// Access is checked before anything else. A table without a retention policy
// yields archival.ErrPolicyNotFound. An empty page is not an error.
func (g *Gateway) QueryArchive(ctx context.Context, caller auth.Identity, req Request) (records []Record, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracing.SpanQuery, tracing.QueryAttributes(caller.Username, req.Table, req.Page, req.Size)...)
	defer func() {
		span.SetAttributes(attribute.Int(tracing.AttrRows, len(records)))
		tracing.End(span, err)
		if g.recorder != nil {
			g.recorder.RecordQuery(req.Table, status(err), time.Since(start))
		}
	}()

	if err := g.access.CheckTableAccess(ctx, caller, req.Table); err != nil {
		return nil, err
	}

	ApplyDefaults(&req, g.limits)
	if err := Validate(&req, g.limits); err != nil {
		return nil, err
	}

	policy, err := g.policies.GetPolicy(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	ageColumn := policy.AgeColumn
	if ageColumn == "" {
		ageColumn = archival.DefaultAgeColumn
	}

	archiveTable := archival.ArchiveTableName(req.Table)
	query, args, err := g.buildQuery(archiveTable, ageColumn, &req)
	if err != nil {
		return nil, &archival.ValidationError{Field: "query", Message: err.Error()}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	records, err = g.fetch(ctx, query, args)
	if err != nil {
		return nil, archival.NewStorageError(g.archive.Name(), "query", archiveTable, err)
	}

	g.logger.Debug("archive query served",
		"user", caller.Username,
		"table", archiveTable,
		"page", req.Page,
		"size", req.Size,
		"rows", len(records),
	)
	return records, nil
}

func (g *Gateway) buildQuery(archiveTable, ageColumn string, req *Request) (string, []any, error) {
	// Bound times are formatted by the driver in their own zone; archived
	// values are stored in UTC.
	var where []exp.Expression
	if req.StartDate != nil {
		where = append(where, goqu.C(ageColumn).Gte(req.StartDate.UTC()))
	}
	if req.EndDate != nil {
		where = append(where, goqu.C(ageColumn).Lte(req.EndDate.UTC()))
	}

	order := goqu.C(ageColumn).Asc()
	if req.Sort == SortDesc {
		order = goqu.C(ageColumn).Desc()
	}

	ds := g.archive.Builder().From(archiveTable).Order(order).Limit(uint(req.Size))
	if len(where) > 0 {
		ds = ds.Where(where...)
	}
	if off := req.Offset(); off > 0 {
		ds = ds.Offset(uint(off))
	}
	return ds.Prepared(true).ToSQL()
}

func (g *Gateway) fetch(ctx context.Context, query string, args []any) ([]Record, error) {
	rows, err := g.archive.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(columns))
		for i, c := range columns {
			rec[c] = database.Normalize(values[i])
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case archival.IsPermissionDenied(err):
		return StatusDenied
	case errors.Is(err, archival.ErrPolicyNotFound):
		return StatusNotFound
	case archival.IsValidation(err):
		return StatusInvalid
	default:
		return StatusError
	}
}
