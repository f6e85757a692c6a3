package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptConversationSummary asks for a strict JSON summary of a transcript.
	// The template expects a single %s placeholder for the transcript.
	PromptConversationSummary = "conversation_summary"
)
