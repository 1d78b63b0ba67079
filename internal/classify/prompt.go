package classify

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/panel-extractor/internal/layout"
)

// PromptVersion tags the enumeration instruction. Bump it whenever the wording changes so
// stored replies can be traced back to the prompt that produced them.
const PromptVersion = "classifier-prompt/v2"

// VisibilityThreshold is the share of a layout's diagnostic fields the model must see
// before it may pick that layout.
const VisibilityThreshold = 90

// BuildPrompt renders the fixed enumeration instruction for every layout in reg.
func BuildPrompt(reg *layout.Registry) string {
	n := reg.Len()
	noMatch := reg.NoMatchID()

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", PromptVersion)
	b.WriteString("You are an assistant that identifies the type of a control panel image from a tape extrusion line.\n\n")
	b.WriteString("The user will provide an image of a control panel screen. Classify the image into one of the categories below, based on the visible data elements.\n\n")
	b.WriteString("You must:\n")
	b.WriteString("- Carefully match the data fields visible in the image with each category.\n")
	fmt.Fprintf(&b, "- Select a category only if at least %d%% of its described data fields are clearly visible and identifiable in the image.\n", VisibilityThreshold)
	fmt.Fprintf(&b, "- Return only the number of the matching category (1-%d), or %d if the image does not clearly fit any category.\n\n", n, noMatch)

	b.WriteString("### Categories:\n\n")
	for _, d := range reg.All() {
		fmt.Fprintf(&b, "%d: **%s**\n", d.ID, d.Title)
		for _, diag := range d.Diagnostics {
			b.WriteString("- ")
			b.WriteString(diag)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d: **No match**\n", noMatch)
	fmt.Fprintf(&b, "- If none of the above categories are satisfied with at least %d%% data field visibility.\n\n", VisibilityThreshold)

	fmt.Fprintf(&b, "Return only a single integer value from 1 to %d.", noMatch)
	return b.String()
}
