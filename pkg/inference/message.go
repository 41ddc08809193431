package inference

// Role is the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the dialogue history sent with every request.
// An assistant message carries either Content or ToolCalls; a RoleTool
// message answers the call named by ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is one function call requested by the model. Arguments is the
// raw JSON text the model produced and may be malformed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool advertises a function to the model. Type is always "function".
type Tool struct {
	Type     string
	Function ToolFunction
}

// ToolFunction is the name, description and JSON Schema parameters of a Tool.
type ToolFunction struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func NewSystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }
func NewUserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }
func NewAssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// NewToolCallMessage records the assistant turn that requested calls, so the
// matching NewToolMessage answers are accepted on the next request.
func NewToolCallMessage(calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCalls: calls}
}

// NewToolMessage answers the tool call with the given id.
func NewToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: content}
}

// NewTool builds a function tool definition.
func NewTool(name, description string, parameters map[string]any) Tool {
	return Tool{
		Type:     "function",
		Function: ToolFunction{Name: name, Description: description, Parameters: parameters},
	}
}
