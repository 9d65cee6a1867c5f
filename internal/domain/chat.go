package domain

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage is the provider-agnostic chat turn shape shared by the proxy
// and the LLM integration.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
