package layout

import "slices"

// SemanticType is the declared type of one panel field.
type SemanticType string

const (
	TypeString     SemanticType = "string"
	TypeInteger    SemanticType = "integer"
	TypeReal       SemanticType = "real"
	TypeStringList SemanticType = "string_list"
	TypeRealList   SemanticType = "real_list"
)

// Valid reports whether t is one of the known semantic types.
func (t SemanticType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeReal, TypeStringList, TypeRealList:
		return true
	}
	return false
}

// IsList reports whether values of t are stored as JSON text.
func (t SemanticType) IsList() bool {
	return t == TypeStringList || t == TypeRealList
}

// Well-known field names.
const (
	FieldCurrentDateTime = "CurrentDateTime"
	FieldAlarmMessages   = "AlarmMessages"
)

// IdentityColumn is the synthetic auto-increment column every relation carries.
const IdentityColumn = "id"

// Field is one typed value read off a panel.
type Field struct {
	Name        string       `yaml:"name" json:"name"`
	Type        SemanticType `yaml:"type" json:"type"`
	Required    bool         `yaml:"required" json:"required"`
	Description string       `yaml:"description" json:"description"`
}

// Relation is the destination table of a layout. Columns follow field order;
// the identity column is not listed.
type Relation struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// Descriptor describes one known panel layout.
type Descriptor struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
	// Summary tells the model what the screen looks like.
	Summary string `json:"summary"`
	// Diagnostics are the visible elements the classifier checks for.
	Diagnostics []string `json:"diagnostics"`
	Fields      []Field  `json:"fields"`
	Relation    Relation `json:"relation"`
}

// Field returns the named field.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns field names in declared order.
func (d *Descriptor) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// RequiredFields returns the names of required fields in declared order.
func (d *Descriptor) RequiredFields() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// newDescriptor derives the relation from the field list so the two cannot drift.
func newDescriptor(id int, name, title, table, summary string, diagnostics []string, fields []Field) Descriptor {
	d := Descriptor{
		ID:          id,
		Name:        name,
		Title:       title,
		Summary:     summary,
		Diagnostics: diagnostics,
		Fields:      fields,
	}
	d.Relation = Relation{Table: table, Columns: d.FieldNames()}
	return d
}

func (d Descriptor) clone() Descriptor {
	d.Diagnostics = slices.Clone(d.Diagnostics)
	d.Fields = slices.Clone(d.Fields)
	d.Relation.Columns = slices.Clone(d.Relation.Columns)
	return d
}

// field constructors keep the built-in tables readable
func str(name, desc string) Field   { return Field{Name: name, Type: TypeString, Description: desc} }
func num(name, desc string) Field   { return Field{Name: name, Type: TypeReal, Description: desc} }
func whole(name, desc string) Field { return Field{Name: name, Type: TypeInteger, Description: desc} }

func required(f Field) Field {
	f.Required = true
	return f
}

func timestampField(desc string) Field {
	return required(str(FieldCurrentDateTime, desc))
}

func alarmsField() Field {
	return Field{
		Name:        FieldAlarmMessages,
		Type:        TypeStringList,
		Required:    true,
		Description: "List of alarm/warning messages shown on the screen. Use an empty list when no alarm is visible.",
	}
}
