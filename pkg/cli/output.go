package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/archival/query"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is an aligned plain text table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output.
	FormatCSV OutputFormat = "csv"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", NewConfigError("output", fmt.Sprintf("unknown format %q (valid: text, json, csv)", s))
	}
}

// Tabular is data that renders as rows under a header.
type Tabular interface {
	Headers() []string
	Rows() [][]string
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// TextFormatter prints Tabular data as an aligned table and anything else
// with %v.
type TextFormatter struct{}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(Tabular)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Headers(), "\t"))
	for _, row := range t.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter formats Tabular data as CSV.
type CSVFormatter struct{}

// FormatTo writes data to writer in CSV format.
func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(Tabular)
	if !ok {
		return fmt.Errorf("CSV output is not supported for %T", data)
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(t.Headers()); err != nil {
		return err
	}
	if err := csvWriter.WriteAll(t.Rows()); err != nil {
		return err
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

// PolicyTable renders retention policies.
type PolicyTable []archival.RetentionPolicy

// Headers implements Tabular.
func (p PolicyTable) Headers() []string {
	return []string{"TABLE", "ARCHIVE AFTER", "DELETE AFTER", "AGE COLUMN"}
}

// Rows implements Tabular.
func (p PolicyTable) Rows() [][]string {
	rows := make([][]string, 0, len(p))
	for _, policy := range p {
		rows = append(rows, []string{
			policy.TableName,
			fmt.Sprintf("%d %s", policy.ArchiveAfter, policy.ArchiveUnit),
			fmt.Sprintf("%d %s", policy.DeleteAfter, policy.DeleteUnit),
			policy.AgeColumn,
		})
	}
	return rows
}

// GrantTable renders table access grants.
type GrantTable []archival.TableAccessGrant

// Headers implements Tabular.
func (g GrantTable) Headers() []string {
	return []string{"USER", "TABLES"}
}

// Rows implements Tabular.
func (g GrantTable) Rows() [][]string {
	rows := make([][]string, 0, len(g))
	for _, grant := range g {
		rows = append(rows, []string{grant.Principal, strings.Join(grant.Tables, ",")})
	}
	return rows
}

// SweepTable renders the per-table outcomes of a sweep.
type SweepTable struct {
	*archival.SweepResult
}

// Headers implements Tabular.
func (s SweepTable) Headers() []string {
	return []string{"TABLE", "ARCHIVED", "DELETED", "DURATION", "STATUS"}
}

// Rows implements Tabular.
func (s SweepTable) Rows() [][]string {
	rows := make([][]string, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		status := "ok"
		switch {
		case o.Failed():
			status = "failed: " + o.Err.Error()
		case o.Mismatch:
			status = "ok (count mismatch)"
		}
		rows = append(rows, []string{
			o.Table,
			strconv.FormatInt(o.ArchivedCount, 10),
			strconv.FormatInt(o.DeletedCount, 10),
			o.Duration.Round(time.Millisecond).String(),
			status,
		})
	}
	return rows
}

// RecordTable renders archive rows with columns in a fixed order.
type RecordTable struct {
	Columns []string
	Records []query.Record
}

// NewRecordTable collects the union of record keys, sorted, as columns.
func NewRecordTable(records []query.Record) RecordTable {
	seen := map[string]bool{}
	var columns []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return RecordTable{Columns: columns, Records: records}
}

// Headers implements Tabular.
func (r RecordTable) Headers() []string {
	return r.Columns
}

// Rows implements Tabular.
func (r RecordTable) Rows() [][]string {
	rows := make([][]string, 0, len(r.Records))
	for _, rec := range r.Records {
		row := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			row[i] = formatValue(rec[c])
		}
		rows = append(rows, row)
	}
	return rows
}

// MarshalJSON emits the records alone.
func (r RecordTable) MarshalJSON() ([]byte, error) {
	if r.Records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Records)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
