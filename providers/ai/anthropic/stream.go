package anthropic

import (
	"context"
	"fmt"
	"io"

	"github.com/leofalp/duet/internal/utils"
	"github.com/leofalp/duet/providers/ai"
)

// StreamMessage implements ai.StreamProvider for Anthropic's Messages API.
// It sends a streaming request with stream=true and returns a ChatStream that
// yields incremental deltas as SSE events arrive.
//
// Anthropic's event lifecycle differs from OpenAI's: content arrives inside
// content_block_delta events whose block type was announced by the preceding
// content_block_start, and usage/stop-reason arrive on message_delta. The
// iterator tracks open blocks by index so input_json_delta fragments are
// attributed to the right tool call.
func (p *AnthropicProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	anthropicReq := requestToAnthropic(request)
	anthropicReq.Stream = true

	streamURL := p.baseURL + messagesEndpoint
	httpResponse, err := utils.DoPostStream(ctx, p.client, streamURL, "", anthropicReq, p.buildHeaders()...)
	if err != nil {
		return nil, err
	}

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		// Maps content block index to the tool call metadata announced in
		// content_block_start, so argument fragments carry ID and name on
		// their first delta only (mirroring the OpenAI chunk contract).
		type openToolBlock struct {
			id        string
			name      string
			announced bool
			callIndex int
		}
		openBlocks := map[int]*openToolBlock{}
		toolCallCount := 0

		// Prompt-side usage arrives on message_start; completion usage on
		// message_delta. Combine them into one usage event at stream end.
		var promptTokens int

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := sseScanner.Next()
			if sseErr == io.EOF {
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("SSE read error: %w", sseErr))
				return
			}

			event, parseErr := unmarshalStreamEvent(payload)
			if parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("failed to parse stream event: %w", parseErr))
				return
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					promptTokens = event.Message.Usage.InputTokens
				}

			case "content_block_start":
				if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
					openBlocks[event.Index] = &openToolBlock{
						id:        event.ContentBlock.ID,
						name:      event.ContentBlock.Name,
						callIndex: toolCallCount,
					}
					toolCallCount++
				}

			case "content_block_delta":
				if event.Delta == nil {
					continue
				}
				switch event.Delta.Type {
				case "text_delta":
					if event.Delta.Text != "" {
						if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: event.Delta.Text}, nil) {
							return
						}
					}
				case "input_json_delta":
					block, ok := openBlocks[event.Index]
					if !ok {
						continue
					}
					delta := &ai.ToolCallDelta{
						Index:     block.callIndex,
						Arguments: event.Delta.PartialJSON,
					}
					if !block.announced {
						delta.ID = block.id
						delta.Name = block.name
						block.announced = true
					}
					if !yield(ai.StreamEvent{Type: ai.StreamEventToolCall, ToolCall: delta}, nil) {
						return
					}
				}

			case "content_block_stop":
				delete(openBlocks, event.Index)

			case "message_delta":
				if event.Usage != nil {
					usage := &ai.Usage{
						PromptTokens:     promptTokens,
						CompletionTokens: event.Usage.OutputTokens,
						TotalTokens:      promptTokens + event.Usage.OutputTokens,
					}
					if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usage}, nil) {
						return
					}
				}
				if event.Delta != nil && event.Delta.StopReason != "" {
					if !yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: mapStopReason(event.Delta.StopReason)}, nil) {
						return
					}
				}

			case "message_stop":
				return

			case "error":
				if event.Error != nil {
					yield(ai.StreamEvent{}, fmt.Errorf("anthropic stream error (%s): %s", event.Error.Type, event.Error.Message))
					return
				}

			case "ping":
				// Keepalive, nothing to do.
			}
		}
	}

	return ai.NewChatStream(iteratorFunc), nil
}
