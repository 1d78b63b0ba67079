package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/panel-extractor/internal/layout"
)

// SystemPrompt frames every extraction call.
const SystemPrompt = "You are a helpful assistant specialized in extracting structured data from images of industrial control panels. " +
	"The user will provide an image of a control panel. Extract all visible data points as specified in the JSON Schema. " +
	"Return the extracted information in strict JSON format under a key called 'items'. Do not include any explanations or comments."

// BuildInstructions renders the human-readable field list for desc. capturedAt, when known,
// is offered as the fallback for CurrentDateTime.
func BuildInstructions(desc *layout.Descriptor, capturedAt time.Time) string {
	var b strings.Builder
	b.WriteString("Analyze the provided control panel image.")
	if desc.Summary != "" {
		b.WriteString(" ")
		b.WriteString(desc.Summary)
	}
	b.WriteString(" Extract the following specific fields:\n\n")

	for _, f := range desc.Fields {
		fmt.Fprintf(&b, "* %s (%s%s): %s\n", f.Name, typeHint(f.Type), requiredHint(f.Required), f.Description)
	}

	if !capturedAt.IsZero() {
		fmt.Fprintf(&b, "\nThe image was captured at %s. Use it for %s only when no date and time is visible on the screen.\n",
			capturedAt.Format("02.01.2006 15:04:05"), layout.FieldCurrentDateTime)
	}

	b.WriteString("\nReturn the data strictly as a JSON object with a single 'items' key containing a list of objects. ")
	b.WriteString("Ensure all numeric values are numbers (not strings) and exclude units from the JSON values themselves, relying on the field descriptions for context. ")
	b.WriteString("For any requested value that is not explicitly visible or clearly identifiable on the screen, return null. ")
	if _, ok := desc.Field(layout.FieldAlarmMessages); ok {
		fmt.Fprintf(&b, "Always include %s as a list; use an empty list when no alarm is shown. ", layout.FieldAlarmMessages)
	}
	b.WriteString("Do not include any additional text or explanations outside the JSON object.")
	return b.String()
}

// SchemaHint is the machine-readable reply shape sent alongside the instructions.
func SchemaHint(desc *layout.Descriptor) string {
	bs, err := json.Marshal(desc.EnvelopeSchema())
	if err != nil {
		// the schema is built from plain maps and strings
		panic(fmt.Sprintf("marshal envelope schema: %v", err))
	}
	return string(bs)
}

func typeHint(t layout.SemanticType) string {
	switch t {
	case layout.TypeInteger:
		return "integer"
	case layout.TypeReal:
		return "number"
	case layout.TypeStringList:
		return "list of strings"
	case layout.TypeRealList:
		return "list of numbers"
	default:
		return "string"
	}
}

func requiredHint(required bool) string {
	if required {
		return ", required"
	}
	return ", optional"
}
