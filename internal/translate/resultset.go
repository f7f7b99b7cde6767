package translate

import (
	"strconv"

	"github.com/twpayne/go-geom"
)

// FieldType is the storage type of a result-set column.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInteger
	TypeFloat
)

// Field is one column of a result set. The column set is discovered from the
// response document; once a column exists its type never changes.
type Field struct {
	Name string
	Type FieldType
}

// Value is a single cell. The raw text is always retained; the typed
// accessors return the parsed value when the text conforms to the column
// type and the zero value otherwise.
type Value struct {
	typ FieldType
	raw string
	i   int64
	f   float64
}

func newValue(typ FieldType, raw string) Value {
	v := Value{typ: typ, raw: raw}
	switch typ {
	case TypeInteger:
		v.i, _ = strconv.ParseInt(raw, 10, 64)
	case TypeFloat:
		v.f, _ = strconv.ParseFloat(raw, 64)
	}
	return v
}

// Type returns the column type the value was stored under.
func (v Value) Type() FieldType { return v.typ }

// String returns the raw text of the value.
func (v Value) String() string { return v.raw }

// Int returns the integer value, or 0 for non-integer cells.
func (v Value) Int() int64 { return v.i }

// Float returns the floating-point value, or 0 for non-float cells.
func (v Value) Float() float64 { return v.f }

// native returns the value as its Go representation for JSON-style output.
func (v Value) native() any {
	switch v.typ {
	case TypeInteger:
		return v.i
	case TypeFloat:
		return v.f
	default:
		return v.raw
	}
}

// Row is one result. Cells for columns discovered by later rows are unset.
type Row struct {
	values []Value
	set    []bool
	geom   geom.T
}

// Value returns the cell for column index i and whether it was set.
func (r *Row) Value(i int) (Value, bool) {
	if i < 0 || i >= len(r.values) || !r.set[i] {
		return Value{}, false
	}
	return r.values[i], true
}

// Geometry returns the row geometry, or nil when the row has none.
func (r *Row) Geometry() geom.T { return r.geom }

// ResultSet is the tabular output of one translated response.
type ResultSet struct {
	fields []Field
	index  map[string]int
	rows   []*Row
}

// Fields returns the columns in discovery order.
func (rs *ResultSet) Fields() []Field { return rs.fields }

// FieldIndex returns the index of the named column, or -1.
func (rs *ResultSet) FieldIndex(name string) int {
	i, ok := rs.index[name]
	if !ok {
		return -1
	}
	return i
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int { return len(rs.rows) }

// Row returns row i.
func (rs *ResultSet) Row(i int) *Row { return rs.rows[i] }

// Value returns the cell for the named column of row i.
func (rs *ResultSet) Value(i int, name string) (Value, bool) {
	idx, ok := rs.index[name]
	if !ok {
		return Value{}, false
	}
	return rs.rows[i].Value(idx)
}

// Record returns row i's set cells keyed by column name, with values in
// their native Go representation.
func (rs *ResultSet) Record(i int) map[string]any {
	rec := make(map[string]any)
	row := rs.rows[i]
	for idx, f := range rs.fields {
		if v, ok := row.Value(idx); ok {
			rec[f.Name] = v.native()
		}
	}
	return rec
}

func (rs *ResultSet) addField(name string, typ FieldType) int {
	idx := len(rs.fields)
	rs.fields = append(rs.fields, Field{Name: name, Type: typ})
	rs.index[name] = idx
	return idx
}
