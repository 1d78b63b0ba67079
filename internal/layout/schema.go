package layout

// ItemsKey is the envelope key the model must put extracted items under.
const ItemsKey = "items"

// ItemSchema returns a JSON Schema (draft 2020-12 subset) for one extracted item.
// We send it to the model as the field contract and validate coerced items against it.
func (d *Descriptor) ItemSchema() map[string]any {
	props := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		props[f.Name] = fieldSchema(f)
	}
	required := d.RequiredFields()
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"title":                d.Title,
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// EnvelopeSchema wraps ItemSchema in the {"items": [...]} reply shape.
func (d *Descriptor) EnvelopeSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{ItemsKey},
		"properties": map[string]any{
			ItemsKey: map[string]any{
				"type":        "array",
				"minItems":    1,
				"description": "List of control panel data entries",
				"items":       d.ItemSchema(),
			},
		},
	}
}

// ItemsEnvelopeSchema checks only the reply shape: an object with a non-empty items array.
// Items themselves are coerced and validated one by one.
func ItemsEnvelopeSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{ItemsKey},
		"properties": map[string]any{
			ItemsKey: map[string]any{"type": "array", "minItems": 1},
		},
	}
}

func fieldSchema(f Field) map[string]any {
	var s map[string]any
	switch f.Type {
	case TypeInteger:
		s = map[string]any{"type": "integer"}
	case TypeReal:
		s = map[string]any{"type": "number"}
	case TypeStringList:
		s = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case TypeRealList:
		s = map[string]any{"type": "array", "items": map[string]any{"type": "number"}}
	default:
		s = map[string]any{"type": "string"}
		if f.Required {
			s["minLength"] = 1
		}
	}
	if !f.Required {
		s["type"] = []string{s["type"].(string), "null"}
	}
	if f.Description != "" {
		s["description"] = f.Description
	}
	return s
}
