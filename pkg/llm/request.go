package llm

// GenerateRequest represents a text generation request (Ollama-compatible).
type GenerateRequest struct {
	Model    string `json:"model"`     // Model name (e.g., "llama2", "mistral")
	Prompt   string `json:"prompt"`    // Rendered conversation context
	NPredict int    `json:"n_predict"` // Max tokens to generate
	Stream   bool   `json:"stream"`    // Always false; responses arrive whole
}

// GenerateParams identifies one generation call. The full tuple keys the
// memo cache: the same prompt against a different model or endpoint is a
// different call.
type GenerateParams struct {
	Prompt    string // Rendered conversation context
	Model     string // Model name
	MaxTokens int    // Upper bound on generated tokens
	Endpoint  string // Full URL of the generate endpoint
}
