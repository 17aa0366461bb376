package sessionuser

import (
	"fmt"
	"strings"
	"time"
)

// Field is a single named value
type Field struct {
	Name  string
	Value interface{}
}

// Fields is an ordered, read-only set of named values. The zero value is
// empty and usable.
type Fields struct {
	keys   []string
	values map[string]interface{}
}

// NewFields builds Fields from pairs. A repeated name keeps its first
// position and its last value.
func NewFields(pairs ...Field) Fields {
	f := Fields{values: make(map[string]interface{}, len(pairs))}
	for _, p := range pairs {
		if _, seen := f.values[p.Name]; !seen {
			f.keys = append(f.keys, p.Name)
		}
		f.values[p.Name] = copyValue(p.Value)
	}
	return f
}

// Keys returns the field names in insertion order
func (f Fields) Keys() []string {
	return append([]string(nil), f.keys...)
}

// Len returns the number of fields
func (f Fields) Len() int {
	return len(f.keys)
}

// Get returns the raw value of a field
func (f Fields) Get(name string) (interface{}, bool) {
	v, ok := f.values[name]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// String returns a field as string, or "" when absent
func (f Fields) String(name string) string {
	v, ok := f.values[name]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Strings returns a list field. A single string is returned as a one
// element list.
func (f Fields) Strings(name string) []string {
	v, ok := f.values[name]
	if !ok || v == nil {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Bool returns a boolean field, false when absent
func (f Fields) Bool(name string) bool {
	b, _ := f.values[name].(bool)
	return b
}

// Time returns a time field. Pointers to time are dereferenced.
func (f Fields) Time(name string) (time.Time, bool) {
	switch t := f.values[name].(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	default:
		return time.Time{}, false
	}
}

// Map returns a copy of the fields as a plain map
func (f Fields) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(f.keys))
	for _, k := range f.keys {
		out[k] = copyValue(f.values[k])
	}
	return out
}

func (f Fields) describe() string {
	parts := make([]string, 0, len(f.keys))
	for _, k := range f.keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f.values[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// copyValue detaches slices and pointers so a snapshot cannot be changed
// through the values it was built from or handed out.
func copyValue(v interface{}) interface{} {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []interface{}:
		return append([]interface{}(nil), s...)
	case *time.Time:
		if s == nil {
			return nil
		}
		t := *s
		return t
	default:
		return v
	}
}
