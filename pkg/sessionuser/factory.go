package sessionuser

import (
	"time"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// StateField is the meta field carrying the activation state. Views always
// include it so active-only lookups can tell inactive users apart.
const StateField = "pool_state"

// DefaultMetaFields are the record metadata names copied into a view
var DefaultMetaFields = []string{"id", "title", StateField}

// DefaultDataFields are the record data names copied into a view
var DefaultDataFields = []string{"name", "email", "surname", "lastname", "groups", "notify", "lastlogin"}

// DefaultFields is the complete default allow-list
var DefaultFields = append(append([]string(nil), DefaultMetaFields...), DefaultDataFields...)

var knownMetaFields = map[string]bool{
	"id":         true,
	"title":      true,
	"pool_state": true,
	"pool_wfa":   true,
	"create":     true,
	"change":     true,
	"createdby":  true,
}

// IsMetaField reports whether name is a record metadata field
func IsMetaField(name string) bool {
	return knownMetaFields[name]
}

// Factory builds session views from stored records
type Factory struct {
	// Fields is the allow-list. Empty means DefaultFields.
	Fields []string

	// IsMeta sorts a field into meta or data. Nil means IsMetaField.
	// Names it does not recognize become data fields.
	IsMeta func(name string) bool

	now func() time.Time
}

// NewFactory creates a factory for the given allow-list
func NewFactory(fields []string) *Factory {
	return &Factory{Fields: fields}
}

// Build copies the allow-listed fields of record, plus the state, into a
// new view. Fields the record does not provide are left out.
func (f *Factory) Build(identity string, record interfaces.UserRecord) *SessionUser {
	fields := f.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	isMeta := f.IsMeta
	if isMeta == nil {
		isMeta = IsMetaField
	}

	var data, meta []Field
	hasState := false
	for _, name := range fields {
		if isMeta(name) {
			if v, ok := record.MetaField(name); ok {
				meta = append(meta, Field{Name: name, Value: v})
				hasState = hasState || name == StateField
			}
			continue
		}
		if v, ok := record.DataField(name); ok {
			data = append(data, Field{Name: name, Value: v})
		}
	}
	if !hasState {
		if v, ok := record.MetaField(StateField); ok {
			meta = append(meta, Field{Name: StateField, Value: v})
		}
	}

	now := time.Now
	if f.now != nil {
		now = f.now
	}
	return newSessionUserAt(identity, record.InternalID(), NewFields(data...), NewFields(meta...), now())
}
