package query

// Row is an opaque, non-owning reference to one domain object. The engine
// never copies or retains the underlying object; its lifetime is owned by
// the table's row source and ends with the call that produced the row.
type Row struct {
	data any
}

// NewRow wraps a domain object pointer. A nil pointer yields the null row.
func NewRow(data any) Row { return Row{data: data} }

// IsNull reports whether the row references nothing.
func (r Row) IsNull() bool { return r.data == nil }

// Data exposes the wrapped object for structural offsetting.
func (r Row) Data() any { return r.data }

// Target extracts the concrete object behind a row. It returns nil when the
// row is null or references a different type, so column getters degrade to
// their zero value instead of panicking.
func Target[T any](r Row) *T {
	if p, ok := r.data.(*T); ok {
		return p
	}
	return nil
}
