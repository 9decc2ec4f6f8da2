package dto

// ToolDescriptor describes one operation offered by the remote catalog.
// Descriptors are replaced wholesale on refresh and never patched.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"input_schema"`
}

type ToolInputSchema struct {
	Type       string                  `json:"type,omitempty"`
	Properties map[string]ToolProperty `json:"properties,omitempty"`
	Required   []string                `json:"required,omitempty"`
}

type ToolProperty struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Clone returns a deep copy so callers can't reach the cached snapshot.
func (t ToolDescriptor) Clone() ToolDescriptor {
	out := t
	if t.InputSchema.Properties != nil {
		out.InputSchema.Properties = make(map[string]ToolProperty, len(t.InputSchema.Properties))
		for k, v := range t.InputSchema.Properties {
			out.InputSchema.Properties[k] = v
		}
	}
	if t.InputSchema.Required != nil {
		out.InputSchema.Required = append([]string(nil), t.InputSchema.Required...)
	}
	return out
}

func (s ToolInputSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// ResolvedIntent is the tool selection produced from a natural-language query.
type ResolvedIntent struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is any JSON-shaped value returned by a tool.
type ToolResult = any
