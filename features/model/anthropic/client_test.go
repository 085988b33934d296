package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcall/runtime/agent/model"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()
	_, err := New(nil, Options{DefaultModel: "m"})
	require.Error(t, err)
	_, err = New(&fakeMessages{}, Options{})
	require.Error(t, err)
	_, err = NewFromAPIKey("", "m")
	require.Error(t, err)
}

func TestEncodeMessages(t *testing.T) {
	t.Parallel()
	use := model.ToolUsePart{ID: "toolu_1", Name: "docs.search", Input: map[string]any{"q": "go"}}
	msgs := []*model.Message{
		model.NewTextMessage(model.RoleSystem, "system", "be brief"),
		model.NewTextMessage(model.RoleUser, "user", "find docs"),
		model.NewMessage(model.RoleAssistant, "bot",
			model.ThinkingPart{Text: "unsigned"},
			model.ThinkingPart{Text: "signed", Signature: "sig"},
			model.TextPart{Text: "searching"},
			use,
		),
		model.NewMessage(model.RoleTool, "docs.search", model.ToolResultPart{
			ToolUseID: "toolu_1",
			Output:    []model.Part{model.TextPart{Text: "3 hits"}},
		}),
		model.NewMessage(model.RoleTool, "docs.search", model.ToolResultPart{ToolUseID: "toolu_2", IsError: true}),
	}
	conv, system, err := encodeMessages(msgs, map[string]string{"docs.search": "docs_search"})
	require.NoError(t, err)

	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].Text)

	require.Len(t, conv, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, conv[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, conv[1].Role)
	require.Len(t, conv[1].Content, 3)
	require.NotNil(t, conv[1].Content[0].OfThinking)
	assert.Equal(t, "sig", conv[1].Content[0].OfThinking.Signature)
	require.NotNil(t, conv[1].Content[2].OfToolUse)
	assert.Equal(t, "docs_search", conv[1].Content[2].OfToolUse.Name)

	assert.Equal(t, sdk.MessageParamRoleUser, conv[2].Role)
	require.Len(t, conv[2].Content, 2)
	require.NotNil(t, conv[2].Content[0].OfToolResult)
	assert.Equal(t, "toolu_1", conv[2].Content[0].OfToolResult.ToolUseID)
}

func TestEncodeMessagesRequiresConversation(t *testing.T) {
	t.Parallel()
	_, _, err := encodeMessages([]*model.Message{model.NewTextMessage(model.RoleSystem, "s", "only system")}, nil)
	require.Error(t, err)
}

func TestPrepareRequestThinkingBudget(t *testing.T) {
	t.Parallel()
	c, err := New(&fakeMessages{}, Options{DefaultModel: "m", MaxTokens: 2048})
	require.NoError(t, err)
	base := []*model.Message{model.NewTextMessage(model.RoleUser, "u", "hi")}

	_, _, err = c.prepareRequest(&model.Request{Messages: base, Thinking: &model.ThinkingOptions{BudgetTokens: 10}})
	require.ErrorContains(t, err, "must be >= 1024")
	_, _, err = c.prepareRequest(&model.Request{Messages: base, Thinking: &model.ThinkingOptions{BudgetTokens: 4096}})
	require.ErrorContains(t, err, "less than max_tokens")

	params, _, err := c.prepareRequest(&model.Request{Messages: base, Model: "override", Thinking: &model.ThinkingOptions{BudgetTokens: 1024}})
	require.NoError(t, err)
	assert.Equal(t, sdk.Model("override"), params.Model)
	assert.NotNil(t, params.Thinking.OfEnabled)
}

func TestSanitizeToolName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "docs_search", sanitizeToolName("docs.search"))
	assert.Equal(t, "ok-name_1", sanitizeToolName("ok-name_1"))
}
