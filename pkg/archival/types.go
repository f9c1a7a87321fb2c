package archival

import (
	"strings"
	"time"
)

// ArchiveTableSuffix is appended to a source table name to form its archive table.
const ArchiveTableSuffix = "_archive"

// DefaultAgeColumn is used when a policy does not name its age column.
const DefaultAgeColumn = "created_at"

// ArchiveTableName returns the archive companion of a source table.
func ArchiveTableName(table string) string {
	return table + ArchiveTableSuffix
}

// TimeUnit is the unit of a retention age.
type TimeUnit string

// Supported time units. MONTHS and YEARS are fixed-length approximations of 30
// and 365 days.
const (
	Days         TimeUnit = "DAYS"
	Hours        TimeUnit = "HOURS"
	Minutes      TimeUnit = "MINUTES"
	Seconds      TimeUnit = "SECONDS"
	Milliseconds TimeUnit = "MILLISECONDS"
	Microseconds TimeUnit = "MICROSECONDS"
	Nanoseconds  TimeUnit = "NANOSECONDS"
	Months       TimeUnit = "MONTHS"
	Years        TimeUnit = "YEARS"
)

// TimeUnits lists every supported unit.
var TimeUnits = []TimeUnit{
	Days, Hours, Minutes, Seconds, Milliseconds, Microseconds, Nanoseconds, Months, Years,
}

// ParseTimeUnit normalizes s (case-insensitive, surrounding space ignored).
// It does not reject unknown units; ComputeThreshold does.
func ParseTimeUnit(s string) TimeUnit {
	return TimeUnit(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether u is one of the supported units.
func (u TimeUnit) Valid() bool {
	for _, known := range TimeUnits {
		if u == known {
			return true
		}
	}
	return false
}

// RetentionPolicy is the archival rule for one source table.
type RetentionPolicy struct {
	// TableName is the source table. The archive table is TableName + "_archive".
	TableName string `json:"tableName" yaml:"table_name"`

	// ArchiveAfter and ArchiveUnit give the age after which source rows move.
	ArchiveAfter int64    `json:"archiveAfter" yaml:"archive_after"`
	ArchiveUnit  TimeUnit `json:"archivalTimeUnit" yaml:"archive_after_unit"`

	// DeleteAfter and DeleteUnit give the age after which archived rows are purged.
	DeleteAfter int64    `json:"deleteAfter" yaml:"delete_after"`
	DeleteUnit  TimeUnit `json:"deleteAfterTimeUnit" yaml:"delete_after_unit"`

	// AgeColumn is the timestamp column compared against thresholds in both
	// the source and the archive table.
	AgeColumn string `json:"archivalColumnName" yaml:"age_column"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// ArchiveTable returns the archive companion of the policy's source table.
func (p RetentionPolicy) ArchiveTable() string {
	return ArchiveTableName(p.TableName)
}

// Normalize upper-cases units, trims names and fills in the default age column.
func (p *RetentionPolicy) Normalize() {
	p.TableName = strings.TrimSpace(p.TableName)
	p.AgeColumn = strings.TrimSpace(p.AgeColumn)
	if p.AgeColumn == "" {
		p.AgeColumn = DefaultAgeColumn
	}
	p.ArchiveUnit = ParseTimeUnit(string(p.ArchiveUnit))
	p.DeleteUnit = ParseTimeUnit(string(p.DeleteUnit))
}

// Validate checks that the policy can be executed.
func (p RetentionPolicy) Validate() error {
	var problems []string

	if err := ValidateIdentifier(p.TableName); err != nil {
		problems = append(problems, "tableName: "+err.Error())
	} else if strings.HasSuffix(p.TableName, ArchiveTableSuffix) {
		problems = append(problems, "tableName: must not be an archive table")
	} else if ValidateIdentifier(p.ArchiveTable()) != nil {
		problems = append(problems, "tableName: archive table name "+quote(p.ArchiveTable())+" is too long")
	}
	if err := ValidateIdentifier(p.AgeColumn); err != nil {
		problems = append(problems, "archivalColumnName: "+err.Error())
	}
	if p.ArchiveAfter < 0 {
		problems = append(problems, "archiveAfter: must not be negative")
	}
	if p.DeleteAfter < 0 {
		problems = append(problems, "deleteAfter: must not be negative")
	}
	if !p.ArchiveUnit.Valid() {
		problems = append(problems, "archivalTimeUnit: unsupported unit "+quote(string(p.ArchiveUnit)))
	}
	if !p.DeleteUnit.Valid() {
		problems = append(problems, "deleteAfterTimeUnit: unsupported unit "+quote(string(p.DeleteUnit)))
	}

	if len(problems) > 0 {
		return &InvalidPolicyError{Table: p.TableName, Problems: problems}
	}
	return nil
}

// TableAccessGrant lists the source tables a principal may configure and query.
type TableAccessGrant struct {
	Principal string    `json:"userName"`
	Tables    []string  `json:"tableNames"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Allows reports whether the grant covers table. Matching is exact.
func (g *TableAccessGrant) Allows(table string) bool {
	if g == nil {
		return false
	}
	for _, t := range g.Tables {
		if t == table {
			return true
		}
	}
	return false
}

// ParseTableList splits a comma-separated table list, trimming blanks and
// dropping empty entries and duplicates.
func ParseTableList(s string) []string {
	return NormalizeTables(strings.Split(s, ","))
}

// NormalizeTables trims names and removes empties and duplicates, keeping order.
func NormalizeTables(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// TableOutcome is the result of processing one policy during a sweep.
type TableOutcome struct {
	Table         string        `json:"table"`
	ArchivedCount int64         `json:"archivedCount"`
	DeletedCount  int64         `json:"deletedCount"`
	Mismatch      bool          `json:"mismatch,omitempty"`
	Duration      time.Duration `json:"duration"`
	Err           error         `json:"-"`
}

// Failed reports whether the table failed during the sweep.
func (o TableOutcome) Failed() bool {
	return o.Err != nil
}

// SweepResult collects per-table outcomes of one sweep, in policy order.
type SweepResult struct {
	RunID      string         `json:"runId"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Outcomes   []TableOutcome `json:"outcomes"`
}

// Failures returns the number of tables that failed.
func (r *SweepResult) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// TotalArchived sums archived rows across tables.
func (r *SweepResult) TotalArchived() int64 {
	var n int64
	for _, o := range r.Outcomes {
		n += o.ArchivedCount
	}
	return n
}

// TotalDeleted sums purged archive rows across tables.
func (r *SweepResult) TotalDeleted() int64 {
	var n int64
	for _, o := range r.Outcomes {
		n += o.DeletedCount
	}
	return n
}

func quote(s string) string {
	return "\"" + s + "\""
}
