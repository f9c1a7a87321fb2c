package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mercator-hq/archivist/pkg/archival"
)

const (
	// DefaultPageSize is used when a request does not specify a size.
	DefaultPageSize = 100

	// MaxPageSize is the largest page a single request may ask for.
	MaxPageSize = 10000
)

// Sort orders.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ValidSortOrders contains the valid sort orders.
var ValidSortOrders = map[string]bool{
	SortAsc:  true,
	SortDesc: true,
}

// dateLayouts are tried in order when parsing startDate and endDate.
// Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Request is a paginated read of one archive table.
type Request struct {
	// Table is the source table name; the archive table is derived from it.
	Table string

	// StartDate and EndDate bound the age column inclusively when set.
	StartDate *time.Time
	EndDate   *time.Time

	// Sort is "asc" (default) or "desc" on the age column.
	Sort string

	// Page is zero-based; Size is the page size.
	Page int
	Size int
}

// Offset returns the number of rows skipped.
func (r *Request) Offset() int {
	return r.Page * r.Size
}

// Limits bounds page sizes.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultLimits returns the package defaults.
func DefaultLimits() Limits {
	return Limits{DefaultPageSize: DefaultPageSize, MaxPageSize: MaxPageSize}
}

func (l Limits) withDefaults() Limits {
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = DefaultPageSize
	}
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = MaxPageSize
	}
	return l
}

// ApplyDefaults fills in the page size and sort order.
func ApplyDefaults(r *Request, limits Limits) {
	limits = limits.withDefaults()
	if r.Size == 0 {
		r.Size = limits.DefaultPageSize
	}
	r.Sort = strings.ToLower(strings.TrimSpace(r.Sort))
	if r.Sort == "" {
		r.Sort = SortAsc
	}
}

// Validate checks a request after ApplyDefaults.
func Validate(r *Request, limits Limits) error {
	limits = limits.withDefaults()

	if err := archival.ValidateIdentifier(r.Table); err != nil {
		return &archival.ValidationError{Field: "tableName", Message: err.Error()}
	}
	if r.Page < 0 {
		return &archival.ValidationError{Field: "page", Message: fmt.Sprintf("must be >= 0, got %d", r.Page)}
	}
	if r.Size < 1 {
		return &archival.ValidationError{Field: "size", Message: fmt.Sprintf("must be >= 1, got %d", r.Size)}
	}
	if r.Size > limits.MaxPageSize {
		return &archival.ValidationError{Field: "size", Message: fmt.Sprintf("must be <= %d, got %d", limits.MaxPageSize, r.Size)}
	}
	if r.Page > math.MaxInt32/r.Size {
		return &archival.ValidationError{Field: "page", Message: "offset out of range"}
	}
	if !ValidSortOrders[r.Sort] {
		return &archival.ValidationError{Field: "sort", Message: fmt.Sprintf("invalid sort order %q (must be 'asc' or 'desc')", r.Sort)}
	}
	if r.StartDate != nil && r.EndDate != nil && r.StartDate.After(*r.EndDate) {
		return &archival.ValidationError{Field: "startDate", Message: "must not be after endDate"}
	}
	return nil
}

// ParseDate parses an RFC 3339 timestamp, a zone-less date-time or a date.
// The result is always in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseRequest builds a Request from query parameters startDate, endDate,
// sort, page and size.
func ParseRequest(table string, values url.Values) (*Request, error) {
	r := &Request{Table: table, Sort: values.Get("sort")}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"startDate", &r.StartDate},
		{"endDate", &r.EndDate},
	} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := ParseDate(raw)
		if err != nil {
			return nil, &archival.ValidationError{Field: p.name, Message: err.Error()}
		}
		*p.dst = &t
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &r.Page},
		{"size", &r.Size},
	} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &archival.ValidationError{Field: p.name, Message: fmt.Sprintf("not an integer: %q", raw)}
		}
		*p.dst = n
	}

	return r, nil
}
