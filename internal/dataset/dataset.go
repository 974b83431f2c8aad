// Package dataset provides the in-memory tabular data model shared by every
// pipeline stage: ordered, row-aligned columns of nullable float, string, or
// timestamp cells. Column order is insertion order and survives every
// transformation that does not add or remove columns.
package dataset

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies the cell type of a column.
type Kind int

const (
	KindFloat Kind = iota
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Column is a single named column. All cells share the column's Kind;
// any cell may be null.
type Column struct {
	name   string
	kind   Kind
	floats []float64
	strs   []string
	times  []time.Time
	valid  []bool
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the column cell type.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of rows.
func (c *Column) Len() int { return len(c.valid) }

// IsNull reports whether the cell at row i is null.
func (c *Column) IsNull(i int) bool { return !c.valid[i] }

// Float returns the float cell at row i. ok is false when the cell is null
// or the column is not a float column.
func (c *Column) Float(i int) (float64, bool) {
	if c.kind != KindFloat || !c.valid[i] {
		return 0, false
	}
	return c.floats[i], true
}

// SetFloat writes a non-null float cell at row i.
// Panics if the column is not a float column, mirroring slice index misuse.
func (c *Column) SetFloat(i int, v float64) {
	if c.kind != KindFloat {
		panic(fmt.Sprintf("dataset: SetFloat on %s column %q", c.kind, c.name))
	}
	c.floats[i] = v
	c.valid[i] = true
}

// String returns the string cell at row i.
func (c *Column) String(i int) (string, bool) {
	if c.kind != KindString || !c.valid[i] {
		return "", false
	}
	return c.strs[i], true
}

// Time returns the timestamp cell at row i.
func (c *Column) Time(i int) (time.Time, bool) {
	if c.kind != KindTime || !c.valid[i] {
		return time.Time{}, false
	}
	return c.times[i], true
}

// FloatValues returns the non-null float cells of the column, in row order.
func (c *Column) FloatValues() []float64 {
	if c.kind != KindFloat {
		return nil
	}
	out := make([]float64, 0, len(c.floats))
	for i, v := range c.floats {
		if c.valid[i] {
			out = append(out, v)
		}
	}
	return out
}

func (c *Column) copy() *Column {
	dup := &Column{name: c.name, kind: c.kind}
	dup.valid = append([]bool(nil), c.valid...)
	switch c.kind {
	case KindFloat:
		dup.floats = append([]float64(nil), c.floats...)
	case KindString:
		dup.strs = append([]string(nil), c.strs...)
	case KindTime:
		dup.times = append([]time.Time(nil), c.times...)
	}
	return dup
}

// Dataset is an ordered collection of row-aligned columns.
type Dataset struct {
	cols   []*Column
	byName map[string]int
	rows   int
}

// New creates an empty dataset with the given row count. Columns added later
// must match this length.
func New(rows int) *Dataset {
	return &Dataset{byName: make(map[string]int), rows: rows}
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return d.rows }

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int { return len(d.cols) }

// ColumnNames returns the column names in insertion order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.name
	}
	return names
}

// Column returns the named column, or nil when absent.
func (d *Dataset) Column(name string) *Column {
	i, ok := d.byName[name]
	if !ok {
		return nil
	}
	return d.cols[i]
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// Columns returns the columns in insertion order.
func (d *Dataset) Columns() []*Column { return d.cols }

// AddFloatColumn appends a float column. valid may be nil, meaning every cell
// is non-null. Returns an error on length mismatch or duplicate name.
func (d *Dataset) AddFloatColumn(name string, values []float64, valid []bool) error {
	if err := d.checkNew(name, len(values)); err != nil {
		return err
	}
	if valid == nil {
		valid = allValid(len(values))
	} else if len(valid) != len(values) {
		return fmt.Errorf("dataset: column %q validity length %d != %d", name, len(valid), len(values))
	}
	d.append(&Column{name: name, kind: KindFloat, floats: values, valid: valid})
	return nil
}

// AddStringColumn appends a string column.
func (d *Dataset) AddStringColumn(name string, values []string, valid []bool) error {
	if err := d.checkNew(name, len(values)); err != nil {
		return err
	}
	if valid == nil {
		valid = allValid(len(values))
	} else if len(valid) != len(values) {
		return fmt.Errorf("dataset: column %q validity length %d != %d", name, len(valid), len(values))
	}
	d.append(&Column{name: name, kind: KindString, strs: values, valid: valid})
	return nil
}

// AddTimeColumn appends a timestamp column.
func (d *Dataset) AddTimeColumn(name string, values []time.Time, valid []bool) error {
	if err := d.checkNew(name, len(values)); err != nil {
		return err
	}
	if valid == nil {
		valid = allValid(len(values))
	} else if len(valid) != len(values) {
		return fmt.Errorf("dataset: column %q validity length %d != %d", name, len(valid), len(values))
	}
	d.append(&Column{name: name, kind: KindTime, times: values, valid: valid})
	return nil
}

// ReplaceWithTimeColumn swaps an existing column for a timestamp column with
// the same name, preserving its position. Used when a string date column is
// parsed into real timestamps.
func (d *Dataset) ReplaceWithTimeColumn(name string, values []time.Time, valid []bool) error {
	i, ok := d.byName[name]
	if !ok {
		return fmt.Errorf("dataset: no column %q", name)
	}
	if len(values) != d.rows || len(valid) != d.rows {
		return fmt.Errorf("dataset: column %q length %d != %d rows", name, len(values), d.rows)
	}
	d.cols[i] = &Column{name: name, kind: KindTime, times: values, valid: valid}
	return nil
}

// Copy returns a deep copy. Transformations work on copies so the caller's
// dataset is never mutated.
func (d *Dataset) Copy() *Dataset {
	dup := New(d.rows)
	for _, c := range d.cols {
		dup.append(c.copy())
	}
	return dup
}

// Records flattens the dataset into one map per row, suitable for JSON
// serialization. Null cells are emitted as nil, timestamps as RFC 3339.
func (d *Dataset) Records() []map[string]any {
	records := make([]map[string]any, d.rows)
	for i := 0; i < d.rows; i++ {
		row := make(map[string]any, len(d.cols))
		for _, c := range d.cols {
			if !c.valid[i] {
				row[c.name] = nil
				continue
			}
			switch c.kind {
			case KindFloat:
				row[c.name] = c.floats[i]
			case KindString:
				row[c.name] = c.strs[i]
			case KindTime:
				row[c.name] = c.times[i].Format(time.RFC3339)
			}
		}
		records[i] = row
	}
	return records
}

// FromRecords builds a dataset from row maps, the shape raw measurement
// batches arrive in. Column order is the sorted union of keys so repeated
// ingests of the same payload produce identical layouts. A column's kind is
// decided by its first non-nil value; cells of a different type become null.
func FromRecords(records []map[string]any) *Dataset {
	d := New(len(records))

	seen := make(map[string]bool)
	var names []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)

	for _, name := range names {
		kind := inferKind(records, name)
		valid := make([]bool, len(records))
		switch kind {
		case KindFloat:
			vals := make([]float64, len(records))
			for i, rec := range records {
				if f, ok := asFloat(rec[name]); ok {
					vals[i] = f
					valid[i] = true
				}
			}
			d.append(&Column{name: name, kind: KindFloat, floats: vals, valid: valid})
		default:
			vals := make([]string, len(records))
			for i, rec := range records {
				if s, ok := rec[name].(string); ok {
					vals[i] = s
					valid[i] = true
				}
			}
			d.append(&Column{name: name, kind: KindString, strs: vals, valid: valid})
		}
	}
	return d
}

func inferKind(records []map[string]any, name string) Kind {
	for _, rec := range records {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		if _, isFloat := asFloat(v); isFloat {
			return KindFloat
		}
		return KindString
	}
	// All-null column: treat as float so imputation still has a home for it.
	return KindFloat
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (d *Dataset) checkNew(name string, n int) error {
	if _, exists := d.byName[name]; exists {
		return fmt.Errorf("dataset: duplicate column %q", name)
	}
	if n != d.rows {
		return fmt.Errorf("dataset: column %q length %d != %d rows", name, n, d.rows)
	}
	return nil
}

func (d *Dataset) append(c *Column) {
	d.byName[c.name] = len(d.cols)
	d.cols = append(d.cols, c)
}

func allValid(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}
