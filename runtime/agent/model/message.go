package model

type (
	// ConversationRole is the closed set of message senders.
	ConversationRole string

	// Message is one conversational record. The ID is stable across the
	// streamed chunks of the same logical message: consumers compare IDs to
	// decide whether a chunk replaces or extends what they already hold.
	Message struct {
		// ID identifies the logical message.
		ID string
		// Name is the sender name (agent or user name).
		Name string
		// Role is the sender role.
		Role ConversationRole
		// Parts is the ordered list of content blocks.
		Parts []Part
		// Meta carries opaque metadata.
		Meta map[string]any
	}

	// Part is a content block. The set of implementations is closed: TextPart,
	// ThinkingPart, ToolUsePart, ToolResultPart and MediaPart.
	Part interface {
		isPart()
		// Kind returns the part discriminator used in JSON encodings.
		Kind() PartKind
	}

	// PartKind discriminates Part implementations.
	PartKind string

	// TextPart is plain text content.
	TextPart struct {
		Text string
	}

	// ThinkingPart is provider reasoning content.
	ThinkingPart struct {
		// Text is the reasoning text.
		Text string
		// Signature is the provider signature required to replay the block.
		Signature string `json:",omitempty"`
	}

	// ToolUsePart is a tool call requested by the model.
	ToolUsePart struct {
		// ID is the provider tool call identifier.
		ID string
		// Name is the tool name.
		Name string
		// RawInput is the argument JSON exactly as streamed.
		RawInput string `json:",omitempty"`
		// Input is RawInput parsed into a map. Empty when RawInput is not a
		// JSON object.
		Input map[string]any
	}

	// ToolResultPart carries the outcome of one tool call.
	ToolResultPart struct {
		// ToolUseID is the ID of the ToolUsePart this result answers.
		ToolUseID string
		// Name is the tool name.
		Name string `json:",omitempty"`
		// Output is the ordered tool output.
		Output []Part
		// IsError reports whether the tool failed.
		IsError bool `json:",omitempty"`
		// Meta carries tool-specific metadata (durations, provider details).
		Meta map[string]any `json:",omitempty"`
	}

	// MediaPart references media stored outside the message.
	MediaPart struct {
		// Type is the media family.
		Type MediaType
		// URI locates the media (URL, data URI or storage key).
		URI string
		// MIMEType is the media type, e.g. "image/png".
		MIMEType string `json:",omitempty"`
	}

	// MediaType enumerates media families.
	MediaType string
)

const (
	RoleSystem    ConversationRole = "system"
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
	RoleTool      ConversationRole = "tool"
)

const (
	PartKindText       PartKind = "text"
	PartKindThinking   PartKind = "thinking"
	PartKindToolUse    PartKind = "tool_use"
	PartKindToolResult PartKind = "tool_result"
	PartKindMedia      PartKind = "media"
)

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

func (TextPart) isPart()       {}
func (ThinkingPart) isPart()   {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}
func (MediaPart) isPart()      {}

// Kind implements Part.
func (TextPart) Kind() PartKind { return PartKindText }

// Kind implements Part.
func (ThinkingPart) Kind() PartKind { return PartKindThinking }

// Kind implements Part.
func (ToolUsePart) Kind() PartKind { return PartKindToolUse }

// Kind implements Part.
func (ToolResultPart) Kind() PartKind { return PartKindToolResult }

// Kind implements Part.
func (MediaPart) Kind() PartKind { return PartKindMedia }

// Valid reports whether r is one of the known roles.
func (r ConversationRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}
