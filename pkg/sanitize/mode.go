// Package sanitize repairs field values against cloud limits, deduplicates
// within a batch, and emits structured complaints for removed items
// (spec §4.3, limits table in spec §6).
package sanitize

// Mode controls how a request-level clean handles items that violate
// limits (spec §4.3, glossary "Sanitation mode").
type Mode int

const (
	// None leaves the batch untouched: no mutation, no verify-drop.
	None Mode = iota
	// Clean sanitizes in place and drops items that still fail
	// verification afterward into the error list.
	Clean
	// Remove drops verify-failing items without mutating anything.
	Remove
)

func (m Mode) String() string {
	switch m {
	case Clean:
		return "Clean"
	case Remove:
		return "Remove"
	default:
		return "None"
	}
}
