package anthropic

import (
	"encoding/json"

	"github.com/leofalp/duet/internal/utils"
	"github.com/leofalp/duet/providers/ai"
)

/*
	CONVERSION FUNCTIONS

	Map between the provider-agnostic ai types and Anthropic's Messages wire
	format. Anthropic models a conversation as alternating user/assistant
	messages whose content is a list of typed blocks; tool results travel as
	tool_result blocks inside a user message rather than a dedicated role.
*/

// requestToAnthropic converts an ai.ChatRequest to the Messages API format.
func requestToAnthropic(request ai.ChatRequest) anthropicRequest {
	req := anthropicRequest{
		Model:     request.Model,
		System:    request.SystemPrompt,
		MaxTokens: defaultMaxTokens,
	}

	if config := request.GenerationConfig; config != nil {
		if config.MaxTokens > 0 {
			req.MaxTokens = config.MaxTokens
		}
		if config.Temperature > 0 {
			req.Temperature = utils.Ptr(float64(config.Temperature))
		}
	}

	for _, msg := range request.Messages {
		switch msg.Role {
		case ai.RoleSystem:
			// Anthropic carries the system prompt on the request envelope.
			if req.System == "" {
				req.System = msg.Content
			} else {
				req.System += "\n\n" + msg.Content
			}

		case ai.RoleTool:
			// Tool results are user-role tool_result blocks.
			content, _ := json.Marshal(msg.Content)
			req.Messages = append(req.Messages, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   content,
				}},
			})

		case ai.RoleAssistant:
			blocks := []anthropicContentBlock{}
			if msg.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: json.RawMessage(tc.Function.Arguments),
				})
			}
			if len(blocks) > 0 {
				req.Messages = append(req.Messages, anthropicMessage{Role: "assistant", Content: blocks})
			}

		default: // ai.RoleUser
			req.Messages = append(req.Messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicContentBlock{{Type: "text", Text: msg.Content}},
			})
		}
	}

	for _, tool := range request.Tools {
		schema := tool.Parameters
		if len(schema) == 0 {
			// Anthropic rejects tools without an input_schema.
			schema = json.RawMessage(`{"type":"object"}`)
		}
		req.Tools = append(req.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	return req
}

// anthropicToGeneric converts a Messages API response to the provider-agnostic
// ai.ChatResponse, concatenating text blocks and mapping tool_use blocks onto
// tool calls.
func anthropicToGeneric(resp anthropicResponse) *ai.ChatResponse {
	result := &ai.ChatResponse{
		Id:           resp.ID,
		Model:        resp.Model,
		FinishReason: mapStopReason(resp.StopReason),
		Usage:        usageToGeneric(resp.Usage),
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, ai.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: ai.ToolCallFunction{
					Name:      block.Name,
					Arguments: string(block.Input),
				},
			})
		}
	}

	return result
}

// usageToGeneric maps Anthropic's input/output token accounting onto ai.Usage,
// computing the total Anthropic does not report.
func usageToGeneric(usage anthropicUsage) *ai.Usage {
	return &ai.Usage{
		PromptTokens:     usage.InputTokens,
		CompletionTokens: usage.OutputTokens,
		TotalTokens:      usage.InputTokens + usage.OutputTokens,
	}
}

// mapStopReason translates Anthropic stop reasons into the OpenAI-style finish
// reasons used by the generic types.
func mapStopReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return stopReason
	}
}
