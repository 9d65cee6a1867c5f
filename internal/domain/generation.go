package domain

// GenerationConfig holds the sampling parameters sent with every completion.
type GenerationConfig struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

// Conversation is a fully assembled single-exchange prompt.
type Conversation struct {
	Messages   []ChatMessage
	Generation GenerationConfig
}
