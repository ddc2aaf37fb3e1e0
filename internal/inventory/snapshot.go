// Package inventory owns the product snapshot: loading it from the xlsx
// source, rendering it as grounding text for the model, and computing the
// exact aggregates the model is not trusted to do itself.
package inventory

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Row holds one product's cell values, aligned with Snapshot.Columns.
type Row []string

// Snapshot is the immutable in-memory rendering of the inventory source at
// a point in time. It is never mutated after New; reloads build a fresh
// snapshot and swap it into the Store wholesale.
type Snapshot struct {
	Columns  []string
	Rows     []Row
	Text     string
	LoadedAt time.Time
}

func New(columns []string, rows []Row) *Snapshot {
	s := &Snapshot{
		Columns:  columns,
		Rows:     rows,
		LoadedAt: time.Now(),
	}
	s.Text = s.render()
	return s
}

func (s *Snapshot) Len() int {
	return len(s.Rows)
}

// render produces the full grounding text: every field of every row, so the
// model never has to answer about products it cannot see. Records are
// blank-line separated "PRODUCTO n:" blocks, which is also the structural
// boundary the message splitter keeps intact.
func (s *Snapshot) render() string {
	var sb strings.Builder
	sb.WriteString("=== INVENTARIO COMPLETO DE PRODUCTOS ===\n\n")
	sb.WriteString("Total de productos: ")
	sb.WriteString(strconv.Itoa(len(s.Rows)))
	sb.WriteString("\n")
	sb.WriteString("Campos disponibles: ")
	sb.WriteString(strings.Join(s.Columns, ", "))
	sb.WriteString("\n\n")

	for i, row := range s.Rows {
		sb.WriteString(renderRow(s.Columns, row, i+1))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderRow(columns []string, row Row, n int) string {
	var sb strings.Builder
	sb.WriteString("PRODUCTO ")
	sb.WriteString(strconv.Itoa(n))
	sb.WriteString(":\n")
	for i, col := range columns {
		if i >= len(row) {
			break
		}
		val := strings.TrimSpace(row[i])
		if val == "" {
			continue
		}
		sb.WriteString("  ")
		sb.WriteString(fieldName(col))
		sb.WriteString(": ")
		sb.WriteString(val)
		sb.WriteString("\n")
	}
	return sb.String()
}

// fieldName turns a raw column header like "stock_actual" into "Stock Actual".
func fieldName(col string) string {
	words := strings.Fields(strings.ReplaceAll(col, "_", " "))
	for i, w := range words {
		r := []rune(w)
		head := strings.ToUpper(string(r[0]))
		words[i] = head + string(r[1:])
	}
	return strings.Join(words, " ")
}

// findColumn returns the index of the first column whose name contains one
// of the candidates, case-insensitive. Candidates are checked in order so
// more specific names win. Returns -1 when no column matches.
func (s *Snapshot) findColumn(candidates []string) int {
	for _, cand := range candidates {
		for i, col := range s.Columns {
			if strings.Contains(strings.ToLower(col), cand) {
				return i
			}
		}
	}
	return -1
}

func (r Row) value(idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

// Store is an atomically replaced handle on the current snapshot. Readers
// never observe a partially loaded snapshot; Get returns nil until the
// first successful load.
type Store struct {
	ptr atomic.Pointer[Snapshot]
}

func (st *Store) Get() *Snapshot {
	return st.ptr.Load()
}

func (st *Store) Swap(s *Snapshot) {
	st.ptr.Store(s)
}
