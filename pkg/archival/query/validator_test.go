package query

import (
	"net/url"
	"testing"
	"time"

	"mercator-hq/archivist/pkg/archival"
)

func TestApplyDefaults(t *testing.T) {
	r := &Request{Table: "events", Sort: " DESC "}
	ApplyDefaults(r, Limits{})
	if r.Size != DefaultPageSize {
		t.Errorf("Size = %d, want %d", r.Size, DefaultPageSize)
	}
	if r.Sort != SortDesc {
		t.Errorf("Sort = %q, want %q", r.Sort, SortDesc)
	}

	r = &Request{Table: "events", Size: 5}
	ApplyDefaults(r, Limits{DefaultPageSize: 20})
	if r.Size != 5 || r.Sort != SortAsc {
		t.Errorf("ApplyDefaults() = %+v, want size 5 asc", r)
	}
}

func TestValidate(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	tests := []struct {
		name      string
		req       Request
		wantField string
	}{
		{"valid", Request{Table: "events", Size: 10, Sort: SortAsc}, ""},
		{"bad table", Request{Table: "events; DROP", Size: 10, Sort: SortAsc}, "tableName"},
		{"negative page", Request{Table: "events", Page: -1, Size: 10, Sort: SortAsc}, "page"},
		{"zero size", Request{Table: "events", Size: 0, Sort: SortAsc}, "size"},
		{"size over max", Request{Table: "events", Size: MaxPageSize + 1, Sort: SortAsc}, "size"},
		{"offset overflow", Request{Table: "events", Page: 1 << 40, Size: 10, Sort: SortAsc}, "page"},
		{"bad sort", Request{Table: "events", Size: 10, Sort: "sideways"}, "sort"},
		{"inverted range", Request{Table: "events", Size: 10, Sort: SortAsc, StartDate: &start, EndDate: &end}, "startDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.req, DefaultLimits())
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			ve, ok := err.(*archival.ValidationError)
			if !ok {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-01T10:30:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), false},
		{"2024-03-01 10:30:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), false},
		{"2024-03-01T10:30:00Z", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), false},
		{"2024-03-01T12:30:00+02:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), false},
		{"yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDate() = %v, want %v", got, tt.want)
			}
			if !tt.wantErr && got.Location() != time.UTC {
				t.Errorf("ParseDate() location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestParseRequest(t *testing.T) {
	v := url.Values{}
	v.Set("startDate", "2024-01-01")
	v.Set("endDate", "2024-02-01T00:00:00Z")
	v.Set("sort", "desc")
	v.Set("page", "2")
	v.Set("size", "25")

	r, err := ParseRequest("events", v)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if r.Table != "events" || r.Sort != "desc" || r.Page != 2 || r.Size != 25 {
		t.Errorf("ParseRequest() = %+v", r)
	}
	if r.StartDate == nil || !r.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartDate = %v", r.StartDate)
	}
	if r.EndDate == nil || !r.EndDate.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("EndDate = %v", r.EndDate)
	}
	if r.Offset() != 50 {
		t.Errorf("Offset() = %d, want 50", r.Offset())
	}

	empty, err := ParseRequest("events", url.Values{})
	if err != nil {
		t.Fatalf("ParseRequest(empty) error = %v", err)
	}
	if empty.StartDate != nil || empty.EndDate != nil || empty.Page != 0 || empty.Size != 0 {
		t.Errorf("ParseRequest(empty) = %+v", empty)
	}

	for _, bad := range []url.Values{
		{"page": {"two"}},
		{"size": {"1.5"}},
		{"startDate": {"soon"}},
	} {
		if _, err := ParseRequest("events", bad); !archival.IsValidation(err) {
			t.Errorf("ParseRequest(%v) error = %v, want validation error", bad, err)
		}
	}
}
