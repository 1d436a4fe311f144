package merge

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/leofalp/duet/providers/ai"
)

// ErrAllInputsFailed is returned through the merged stream when every input
// ends in failure and there is nothing to deliver.
var ErrAllInputsFailed = errors.New("merge: all input streams failed")

// EventType discriminates the events yielded by a merged stream.
type EventType string

const (
	// EventDelta is an incremental text fragment from one provider.
	EventDelta EventType = "delta"

	// EventToolCall is an incremental tool-call fragment from one provider.
	EventToolCall EventType = "tool_call"

	// EventProviderDone marks one provider's stream finishing cleanly. It
	// carries that provider's Usage when the provider reported one.
	EventProviderDone EventType = "provider_done"

	// EventProviderError marks one provider's stream ending in failure. The
	// merged stream continues with the remaining providers.
	EventProviderError EventType = "provider_error"

	// EventFinal is the single closing event carrying the merged text of all
	// providers that completed.
	EventFinal EventType = "final"
)

// Event is one entry in a merged stream. Provider is set on every event
// except EventFinal.
type Event struct {
	Type     EventType
	Provider string

	// Delta is the incremental text fragment (Type == EventDelta).
	Delta string

	// Buffer is the provider's accumulated text so far, including Delta.
	Buffer string

	// ToolCall is the incremental tool-call fragment (Type == EventToolCall).
	ToolCall *ai.ToolCallDelta

	// Usage is the provider's reported token usage (Type == EventProviderDone).
	Usage *ai.Usage

	// Err is the provider's terminal error (Type == EventProviderError).
	Err error

	// Content is the merged text (Type == EventFinal).
	Content string
}

// Input pairs a provider name with its live stream.
type Input struct {
	Provider string
	Stream   *ai.ChatStream
}

// Stream is an ordered sequence of merged events. Like [ai.ChatStream] it is
// single-use: Iter may only be ranged over once.
type Stream struct {
	seq iter.Seq2[Event, error]
}

// NewStream wraps a raw iterator sequence in a Stream.
func NewStream(seq iter.Seq2[Event, error]) *Stream {
	return &Stream{seq: seq}
}

// Iter returns the underlying iterator for use in a for-range loop.
func (s *Stream) Iter() iter.Seq2[Event, error] {
	return s.seq
}

// Collect drains the stream and returns the merged final text. A mid-stream
// provider failure is tolerated as long as another provider completes; the
// error return is non-nil only when the stream itself fails (all inputs
// failed, or the context was cancelled).
func (s *Stream) Collect() (string, error) {
	var final string

	for event, err := range s.seq {
		if err != nil {
			return "", err
		}

		if event.Type == EventFinal {
			final = event.Content
		}
	}

	return final, nil
}

// Streams merges the given input streams into one ordered event sequence.
// One producer goroutine per input forwards deltas to a shared channel the
// moment they arrive, so a slow provider never delays a fast one. Each delta
// is tagged with its provider and the provider's running buffer.
//
// When every input has ended, the merged stream closes with one EventFinal
// carrying [Final] of the accumulated buffers — or, with a single input, that
// input's buffer verbatim. If all inputs fail the stream ends with an error
// wrapping [ErrAllInputsFailed] and no final event is emitted.
//
// Cancelling ctx stops the producers and ends the merged stream with ctx's
// error.
func Streams(ctx context.Context, inputs []Input) *Stream {
	items := make(chan Event)

	var wg sync.WaitGroup
	for _, input := range inputs {
		wg.Add(1)
		go func(input Input) {
			defer wg.Done()
			produce(ctx, input, items)
		}(input)
	}

	go func() {
		wg.Wait()
		close(items)
	}()

	iteratorFunc := func(yield func(Event, error) bool) {
		buffers := make(map[string]string, len(inputs))
		failures := make(map[string]error, len(inputs))
		completed := make([]string, 0, len(inputs))

		for {
			var event Event
			var open bool

			select {
			case <-ctx.Done():
				// Drain in the background so producers unblock and exit.
				go drain(items)
				yield(Event{}, ctx.Err())
				return
			case event, open = <-items:
			}

			if !open {
				break
			}

			switch event.Type {
			case EventDelta:
				buffers[event.Provider] += event.Delta
				event.Buffer = buffers[event.Provider]
			case EventProviderDone:
				event.Buffer = buffers[event.Provider]
				completed = append(completed, event.Provider)
			case EventProviderError:
				failures[event.Provider] = event.Err
			}

			if !yield(event, nil) {
				go drain(items)
				return
			}
		}

		if ctx.Err() != nil {
			yield(Event{}, ctx.Err())
			return
		}

		if len(completed) == 0 {
			yield(Event{}, fmt.Errorf("%w: %w", ErrAllInputsFailed, joinFailures(failures)))
			return
		}

		yield(Event{Type: EventFinal, Content: mergeBuffers(buffers, completed)}, nil)
	}

	return NewStream(iteratorFunc)
}

// produce forwards one input stream's events to the shared channel, tagging
// each with the input's provider name. Usage events are held back and attached
// to the provider-done event.
func produce(ctx context.Context, input Input, items chan<- Event) {
	var usage *ai.Usage

	send := func(event Event) bool {
		select {
		case items <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for event, err := range input.Stream.Iter() {
		if err != nil {
			send(Event{Type: EventProviderError, Provider: input.Provider, Err: err})
			return
		}

		switch event.Type {
		case ai.StreamEventContent:
			if !send(Event{Type: EventDelta, Provider: input.Provider, Delta: event.Content}) {
				return
			}

		case ai.StreamEventToolCall:
			if !send(Event{Type: EventToolCall, Provider: input.Provider, ToolCall: event.ToolCall}) {
				return
			}

		case ai.StreamEventUsage:
			usage = event.Usage

		case ai.StreamEventDone:
			send(Event{Type: EventProviderDone, Provider: input.Provider, Usage: usage})
			return

		case ai.StreamEventError:
			send(Event{Type: EventProviderError, Provider: input.Provider, Err: errors.New(event.Error)})
			return
		}
	}

	// Stream ended without a done event: treat as a clean finish so partial
	// output is not discarded.
	send(Event{Type: EventProviderDone, Provider: input.Provider, Usage: usage})
}

// mergeBuffers builds the final text from the buffers of providers that
// completed. A single survivor is delivered verbatim; two are merged with the
// Final heuristic.
func mergeBuffers(buffers map[string]string, completed []string) string {
	sort.Strings(completed)

	if len(completed) == 1 {
		return strings.TrimSpace(buffers[completed[0]])
	}

	merged := Final(
		Candidate{Provider: completed[0], Content: buffers[completed[0]]},
		Candidate{Provider: completed[1], Content: buffers[completed[1]]},
	)

	// More than two completed inputs folds left.
	for _, provider := range completed[2:] {
		merged = Final(
			Candidate{Provider: "merged", Content: merged},
			Candidate{Provider: provider, Content: buffers[provider]},
		)
	}

	return merged
}

// joinFailures flattens the per-provider failure map into one error with
// stable ordering.
func joinFailures(failures map[string]error) error {
	providers := make([]string, 0, len(failures))
	for provider := range failures {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	wrapped := make([]error, 0, len(failures))
	for _, provider := range providers {
		wrapped = append(wrapped, fmt.Errorf("%s: %w", provider, failures[provider]))
	}

	return errors.Join(wrapped...)
}

// drain discards remaining items so producer goroutines can finish after the
// consumer stops early.
func drain(items <-chan Event) {
	for range items {
	}
}
