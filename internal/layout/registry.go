package layout

import (
	"fmt"
	"slices"
	"sort"

	"github.com/joseph-ayodele/panel-extractor/internal/common"
)

// Registry is the immutable set of known layouts. It is safe for concurrent use.
type Registry struct {
	layouts []Descriptor // index i holds layout i+1
}

// NewRegistry validates descs and returns a registry ordered by ID.
// IDs must be contiguous from 1 so that N+1 can denote "no match".
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	if len(descs) == 0 {
		return nil, common.NewAppError(common.CodeLayout, "registry needs at least one layout", common.ErrInvalidInput)
	}
	sorted := make([]Descriptor, len(descs))
	for i, d := range descs {
		sorted[i] = d.clone()
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	v := common.NewValidator()
	tables := map[string]int{}
	for i := range sorted {
		d := &sorted[i]
		v.Check(d.ID == i+1, "id", d.ID, fmt.Sprintf("layout ids must be contiguous from 1 (expected %d)", i+1))
		validateDescriptor(v, d)
		if prev, ok := tables[d.Relation.Table]; ok {
			v.Check(false, "relation.table", d.Relation.Table, fmt.Sprintf("already used by layout %d", prev))
		}
		tables[d.Relation.Table] = d.ID
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	return &Registry{layouts: sorted}, nil
}

// DefaultRegistry returns the registry over the built-in layouts.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("built-in layouts are invalid: %v", err))
	}
	return r
}

func validateDescriptor(v *common.Validator, d *Descriptor) {
	prefix := fmt.Sprintf("layout[%d].", d.ID)
	v.Field(prefix+"name", d.Name, common.Required)
	v.Field(prefix+"relation.table", d.Relation.Table, common.Identifier)
	v.Check(len(d.Diagnostics) > 0, prefix+"diagnostics", len(d.Diagnostics), "must list at least one diagnostic field")

	seen := map[string]struct{}{}
	for _, f := range d.Fields {
		v.Field(prefix+"fields.name", f.Name, common.Identifier)
		v.Check(f.Type.Valid(), prefix+f.Name+".type", f.Type, "unknown semantic type")
		if _, dup := seen[f.Name]; dup {
			v.Check(false, prefix+"fields.name", f.Name, "duplicate field")
		}
		seen[f.Name] = struct{}{}
		v.Check(f.Name != IdentityColumn, prefix+"fields.name", f.Name, "collides with the identity column")
		if f.Name == FieldAlarmMessages {
			v.Check(f.Type == TypeStringList, prefix+f.Name+".type", f.Type, "must be string_list")
		}
	}

	ts, ok := d.Field(FieldCurrentDateTime)
	v.Check(ok && ts.Required && ts.Type == TypeString, prefix+FieldCurrentDateTime, ts.Type, "must be a required string field")
	v.Check(slices.Equal(d.Relation.Columns, d.FieldNames()), prefix+"relation.columns", d.Relation.Columns, "must match the field list in order")
}

// Get returns the layout with the given ID.
func (r *Registry) Get(id int) (*Descriptor, bool) {
	if id < 1 || id > len(r.layouts) {
		return nil, false
	}
	return &r.layouts[id-1], true
}

// Len returns N, the number of known layouts.
func (r *Registry) Len() int {
	return len(r.layouts)
}

// NoMatchID returns N+1, the classifier answer for "none of the layouts fit".
func (r *Registry) NoMatchID() int {
	return len(r.layouts) + 1
}

// All returns the layouts in ID order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, len(r.layouts))
	for i := range r.layouts {
		out[i] = &r.layouts[i]
	}
	return out
}
