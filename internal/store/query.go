package store

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder assembles a parameterised WHERE clause. Column names are
// always package constants; only values become arguments.
type WhereBuilder struct {
	conditions []string
	args       []any
}

// NewWhereBuilder returns an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

func (w *WhereBuilder) placeholder(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// Add adds column = value, skipping empty values.
func (w *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	w.conditions = append(w.conditions, column+" = "+w.placeholder(value))
}

// AddID adds column = id, skipping zero ids.
func (w *WhereBuilder) AddID(column string, id int64) {
	if id == 0 {
		return
	}
	w.conditions = append(w.conditions, column+" = "+w.placeholder(id))
}

// AddBool adds column = *v when v is set.
func (w *WhereBuilder) AddBool(column string, v *bool) {
	if v == nil {
		return
	}
	w.conditions = append(w.conditions, column+" = "+w.placeholder(*v))
}

// AddIn adds column = ANY(values), skipping empty lists.
func (w *WhereBuilder) AddIn(column string, values []string) {
	if len(values) == 0 {
		return
	}
	w.conditions = append(w.conditions, column+" = ANY("+w.placeholder(values)+")")
}

// AddTimestampRange adds start <= column < end. Zero bounds are skipped.
func (w *WhereBuilder) AddTimestampRange(column string, start, end time.Time) {
	if !start.IsZero() {
		w.conditions = append(w.conditions, column+" >= "+w.placeholder(start))
	}
	if !end.IsZero() {
		w.conditions = append(w.conditions, column+" < "+w.placeholder(end))
	}
}

// NextArgIndex returns the placeholder index the next argument will take.
func (w *WhereBuilder) NextArgIndex() int {
	return len(w.args) + 1
}

// Build returns the clause with a leading " WHERE", or "" when empty, and
// its arguments.
func (w *WhereBuilder) Build() (string, []any) {
	if len(w.conditions) == 0 {
		return "", w.args
	}
	return " WHERE " + strings.Join(w.conditions, " AND "), w.args
}

// setBuilder assembles the SET list of a partial UPDATE.
type setBuilder struct {
	assignments []string
	args        []any
}

func (s *setBuilder) set(column string, v any) {
	s.args = append(s.args, v)
	s.assignments = append(s.assignments, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (s *setBuilder) empty() bool {
	return len(s.assignments) == 0
}

// update renders "UPDATE table SET ... WHERE id = $n".
func (s *setBuilder) update(table string, id int64) (string, []any) {
	args := append(s.args, id)
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		table, strings.Join(s.assignments, ", "), len(args)), args
}
