package core

// GenerationConfig carries the model parameters and system prompt used to
// drive a character's replies. It mirrors the system configuration attached
// to search results so retrieval backends can report which configuration
// produced the stored context.
type GenerationConfig struct {
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int64   `json:"max_tokens"`
	SystemPrompt string  `json:"system_prompt"`
}

// Character is an LLM-driven persona users converse with. Functions lists the
// registered function names the character is allowed to invoke; an empty list
// exposes every registered handler.
type Character struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Greeting  string           `json:"greeting,omitempty"`
	Config    GenerationConfig `json:"config"`
	Functions []string         `json:"functions,omitempty"`
}
