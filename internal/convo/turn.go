package convo

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one element of the conversation history. Immutable once appended;
// insertion order is conversation order.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
