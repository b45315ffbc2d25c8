// Package schema holds the per-module FieldSchema configuration: which
// spreadsheet titles a module accepts, how they map to stored columns and
// which columns drive validation, deduplication and aggregation.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// ImportedByColumn is stamped on every row from request metadata.
const ImportedByColumn = "imported_by"

// DefaultHeaderTitle is the sentinel title that marks the header row.
const DefaultHeaderTitle = "Report Date"

type Generation string

const (
	// Legacy modules emit monthGraph / totalGraph.
	Legacy Generation = "legacy"
	// Current modules emit total / lineGraph / barGraph.
	Current Generation = "current"
)

// GraphWindow selects the window line and bar series are computed over.
type GraphWindow string

const (
	WindowMonth     GraphWindow = "month"
	WindowSixMonths GraphWindow = "six_months"
)

type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeNumeric ColumnType = "numeric"
	TypeDate    ColumnType = "date"
)

// Column maps a spreadsheet title to its stored column.
type Column struct {
	Title  string     `yaml:"title" json:"title"`
	Stored string     `yaml:"stored" json:"stored"`
	Type   ColumnType `yaml:"type" json:"type"`
}

// FormatRule constrains the text of one column: a literal prefix, a regular
// expression, or both.
type FormatRule struct {
	Column  string `yaml:"column"`
	Prefix  string `yaml:"prefix"`
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`

	re *regexp.Regexp
}

func (r *FormatRule) compile() error {
	if r.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("format rule for %q: %w", r.Column, err)
	}
	r.re = re
	return nil
}

// Check reports whether value satisfies the rule.
func (r *FormatRule) Check(value string) bool {
	if r.Prefix != "" && !strings.HasPrefix(value, r.Prefix) {
		return false
	}
	if r.re != nil && !r.re.MatchString(value) {
		return false
	}
	return true
}

// FieldSchema is the immutable description of one module. Titles refer to
// spreadsheet headers; Dimension, Metric and the other selectors are stored
// column names.
type FieldSchema struct {
	Name        string      `yaml:"name"`
	Table       string      `yaml:"table"`
	Generation  Generation  `yaml:"generation"`
	GraphWindow GraphWindow `yaml:"graph_window"`
	HeaderTitle string      `yaml:"header_title"`

	Columns         []Column     `yaml:"columns"`
	Required        []string     `yaml:"required"`
	DateColumns     []string     `yaml:"date_columns"`
	FormatRules     []FormatRule `yaml:"format_rules"`
	EqualityExclude []string     `yaml:"equality_exclude"`
	AllowZero       []string     `yaml:"allow_zero"`

	Dimension        string `yaml:"dimension"`
	Metric           string `yaml:"metric"`
	RegionColumn     string `yaml:"region_column"`
	ReportDateColumn string `yaml:"report_date_column"`
	NameColumn       string `yaml:"name_column"`

	byTitle   map[string]int
	byStored  map[string]int
	dates     map[string]bool
	allowZero map[string]bool
	exclude   map[string]bool
}

// Prepare fills defaults, builds the lookup indexes and checks every
// reference against the declared columns. It must be called before use;
// the catalogue does this on load.
func (s *FieldSchema) Prepare() error {
	if s.Name == "" {
		return fmt.Errorf("module without a name")
	}
	if s.Table == "" {
		return fmt.Errorf("module %s: table is required", s.Name)
	}
	if s.Generation == "" {
		s.Generation = Current
	}
	if s.Generation != Legacy && s.Generation != Current {
		return fmt.Errorf("module %s: unknown generation %q", s.Name, s.Generation)
	}
	if s.GraphWindow == "" {
		s.GraphWindow = WindowMonth
	}
	if s.GraphWindow != WindowMonth && s.GraphWindow != WindowSixMonths {
		return fmt.Errorf("module %s: unknown graph window %q", s.Name, s.GraphWindow)
	}
	if s.HeaderTitle == "" {
		s.HeaderTitle = DefaultHeaderTitle
	}

	s.byTitle = make(map[string]int, len(s.Columns))
	s.byStored = make(map[string]int, len(s.Columns))
	for i, c := range s.Columns {
		if c.Title == "" || c.Stored == "" {
			return fmt.Errorf("module %s: column %d needs a title and a stored name", s.Name, i)
		}
		if c.Type == "" {
			s.Columns[i].Type = TypeText
		}
		switch s.Columns[i].Type {
		case TypeText, TypeNumeric, TypeDate:
		default:
			return fmt.Errorf("module %s: column %q has unknown type %q", s.Name, c.Title, c.Type)
		}
		if _, dup := s.byTitle[c.Title]; dup {
			return fmt.Errorf("module %s: duplicate column title %q", s.Name, c.Title)
		}
		if _, dup := s.byStored[c.Stored]; dup {
			return fmt.Errorf("module %s: duplicate stored column %q", s.Name, c.Stored)
		}
		s.byTitle[c.Title] = i
		s.byStored[c.Stored] = i
	}

	titles := func(field string, list []string) error {
		for _, t := range list {
			if _, ok := s.byTitle[t]; !ok {
				return fmt.Errorf("module %s: %s references unknown column %q", s.Name, field, t)
			}
		}
		return nil
	}
	if err := titles("required", s.Required); err != nil {
		return err
	}
	if err := titles("date_columns", s.DateColumns); err != nil {
		return err
	}
	if err := titles("allow_zero", s.AllowZero); err != nil {
		return err
	}
	for i := range s.FormatRules {
		if err := titles("format_rules", []string{s.FormatRules[i].Column}); err != nil {
			return err
		}
		if err := s.FormatRules[i].compile(); err != nil {
			return fmt.Errorf("module %s: %w", s.Name, err)
		}
	}

	for _, sel := range []struct{ field, col string }{
		{"dimension", s.Dimension},
		{"metric", s.Metric},
		{"region_column", s.RegionColumn},
		{"report_date_column", s.ReportDateColumn},
		{"name_column", s.NameColumn},
	} {
		if sel.col == "" {
			return fmt.Errorf("module %s: %s is required", s.Name, sel.field)
		}
		if _, ok := s.byStored[sel.col]; !ok {
			return fmt.Errorf("module %s: %s references unknown stored column %q", s.Name, sel.field, sel.col)
		}
	}

	s.exclude = map[string]bool{}
	for _, c := range s.EqualityExclude {
		if _, ok := s.byStored[c]; !ok && c != ImportedByColumn {
			return fmt.Errorf("module %s: equality_exclude references unknown stored column %q", s.Name, c)
		}
		s.exclude[c] = true
	}
	// date_columns and date-typed columns are the same set.
	s.dates = map[string]bool{}
	for _, t := range s.DateColumns {
		s.dates[t] = true
		s.Columns[s.byTitle[t]].Type = TypeDate
	}
	for _, c := range s.Columns {
		if c.Type == TypeDate {
			s.dates[c.Title] = true
		}
	}
	s.allowZero = map[string]bool{}
	for _, t := range s.AllowZero {
		s.allowZero[t] = true
	}
	return nil
}

// StoredName maps a spreadsheet title to its stored column.
func (s *FieldSchema) StoredName(title string) (string, bool) {
	i, ok := s.byTitle[title]
	if !ok {
		return "", false
	}
	return s.Columns[i].Stored, true
}

// ColumnByStored returns the column declared under a stored name.
func (s *FieldSchema) ColumnByStored(stored string) (Column, bool) {
	i, ok := s.byStored[stored]
	if !ok {
		return Column{}, false
	}
	return s.Columns[i], true
}

// TypeOf returns the declared type of a stored column; imported_by and
// unknown columns are text.
func (s *FieldSchema) TypeOf(stored string) ColumnType {
	if c, ok := s.ColumnByStored(stored); ok {
		return c.Type
	}
	return TypeText
}

func (s *FieldSchema) IsDateTitle(title string) bool { return s.dates[title] }

func (s *FieldSchema) ZeroAllowed(title string) bool { return s.allowZero[title] }

// ExcludedFromEquality reports whether a stored column is ignored when
// looking for already persisted rows.
func (s *FieldSchema) ExcludedFromEquality(stored string) bool {
	return s.exclude[stored]
}

// StoredColumns lists the stored names in declaration order followed by
// imported_by.
func (s *FieldSchema) StoredColumns() []string {
	out := make([]string, 0, len(s.Columns)+1)
	for _, c := range s.Columns {
		out = append(out, c.Stored)
	}
	return append(out, ImportedByColumn)
}

// Writable reports whether a stored column may be set through an update.
func (s *FieldSchema) Writable(stored string) bool {
	if stored == ImportedByColumn {
		return true
	}
	_, ok := s.byStored[stored]
	return ok
}
