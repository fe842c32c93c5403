package api

// FragmentKind classifies a render fragment.
type FragmentKind string

const (
	// FragmentPlaceholder signals work in progress (a spinner). It is
	// replaced by a later fragment of the same turn.
	FragmentPlaceholder FragmentKind = "transient-placeholder"

	// FragmentIncrementalText carries one text delta of a streamed answer.
	FragmentIncrementalText FragmentKind = "incremental-text"

	// FragmentFinalContent carries the terminal content of a turn.
	FragmentFinalContent FragmentKind = "final-content"

	// FragmentErrorMessage carries a user-visible error for the turn.
	FragmentErrorMessage FragmentKind = "error-message"
)

// Fragment is a display-agnostic unit of output handed to the presentation
// layer. Fragments are transient: state is rebuilt only from the
// conversation store, never from fragments.
type Fragment struct {
	Kind   FragmentKind `json:"kind"`
	TurnID string       `json:"turn_id"`
	Seq    int          `json:"seq"`

	// Text is the delta for incremental-text, the full answer for
	// final-content, and the user-facing message for error-message.
	Text string `json:"text,omitempty"`

	// Tool names the tool that produced this fragment, if any.
	Tool string `json:"tool,omitempty"`

	// Data is an opaque, tool-specific payload (weather card, image list).
	Data any `json:"data,omitempty"`

	// PolicyViolation is set on error-message fragments caused by a
	// content-policy rejection.
	PolicyViolation bool `json:"policy_violation,omitempty"`
}

// IsTerminal reports whether the fragment ends a turn.
func (f Fragment) IsTerminal() bool {
	return f.Kind == FragmentFinalContent || f.Kind == FragmentErrorMessage
}
