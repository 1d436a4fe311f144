package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leofalp/duet/core/cache"
	"github.com/leofalp/duet/core/client"
	"github.com/leofalp/duet/core/ledger"
	"github.com/leofalp/duet/core/merge"
	"github.com/leofalp/duet/providers/ai"
)

// ========== Test fixtures ==========

// fakeProvider implements ai.Provider and ai.StreamProvider with canned
// responses and invocation counting.
type fakeProvider struct {
	name      string
	content   string
	usage     *ai.Usage
	toolCalls []ai.ToolCall
	err       error
	calls     atomic.Int64
	streamErr error

	mu   sync.Mutex
	last ai.ChatRequest
}

func (f *fakeProvider) Name() string { return f.name }

// lastRequest returns the most recent request this provider received.
func (f *fakeProvider) lastRequest() ai.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeProvider) SendMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	f.calls.Add(1)

	f.mu.Lock()
	f.last = request
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	return &ai.ChatResponse{
		Model:        "fake-model",
		Content:      f.content,
		FinishReason: "stop",
		Usage:        f.usage,
		ToolCalls:    f.toolCalls,
	}, nil
}

func (f *fakeProvider) StreamMessage(_ context.Context, _ ai.ChatRequest) (*ai.ChatStream, error) {
	f.calls.Add(1)

	if f.streamErr != nil {
		return nil, f.streamErr
	}

	content := f.content
	usage := f.usage

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: content}, nil) {
			return
		}

		if usage != nil {
			if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usage}, nil) {
				return
			}
		}

		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: "stop"}, nil)
	}

	return ai.NewChatStream(iteratorFunc), nil
}

func (f *fakeProvider) WithAPIKey(_ string) ai.Provider           { return f }
func (f *fakeProvider) WithBaseURL(_ string) ai.Provider          { return f }
func (f *fakeProvider) WithHttpClient(_ *http.Client) ai.Provider { return f }

// testHarness bundles an orchestrator with its fakes and collaborators.
type testHarness struct {
	orch      *Orchestrator
	openai    *fakeProvider
	anthropic *fakeProvider
	cache     *cache.Cache[Result]
	ledger    *ledger.Ledger
}

// harnessOption mutates the fixture before the orchestrator is built.
type harnessOption func(*testHarness)

func withAllowance(allowance int64) harnessOption {
	return func(h *testHarness) { h.ledger = ledger.New(allowance) }
}

func newHarness(t *testing.T, openaiProvider, anthropicProvider *fakeProvider, options ...harnessOption) *testHarness {
	t.Helper()

	h := &testHarness{
		openai:    openaiProvider,
		anthropic: anthropicProvider,
		cache:     cache.New[Result](16, time.Minute),
		ledger:    ledger.New(1_000_000),
	}

	for _, option := range options {
		option(h)
	}

	openaiClient, err := client.New(openaiProvider)
	if err != nil {
		t.Fatal(err)
	}

	anthropicClient, err := client.New(anthropicProvider)
	if err != nil {
		t.Fatal(err)
	}

	h.orch, err = New(Config{
		OpenAI:    ProviderConfig{Client: openaiClient, Model: "gpt-test"},
		Anthropic: ProviderConfig{Client: anthropicClient, Model: "claude-test"},
		Cache:     h.cache,
		Ledger:    h.ledger,
	})
	if err != nil {
		t.Fatal(err)
	}

	return h
}

func validRequest() Request {
	return Request{
		Prompt:      "what is 2+2",
		Preference:  PreferenceHybrid,
		Temperature: 0.7,
		MaxTokens:   100,
		Identity:    "alice",
	}
}

// ========== Validation ==========

// TestHandle_Validation verifies defensive rejection before any provider call.
func TestHandle_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty prompt", func(r *Request) { r.Prompt = "   " }},
		{"temperature too high", func(r *Request) { r.Temperature = 2.5 }},
		{"temperature negative", func(r *Request) { r.Temperature = -0.1 }},
		{"zero max tokens", func(r *Request) { r.MaxTokens = 0 }},
		{"max tokens over limit", func(r *Request) { r.MaxTokens = MaxTokensLimit + 1 }},
		{"missing identity", func(r *Request) { r.Identity = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			openai := &fakeProvider{name: "openai", content: "4"}
			anthropic := &fakeProvider{name: "anthropic", content: "four"}
			h := newHarness(t, openai, anthropic)

			req := validRequest()
			tc.mutate(&req)

			_, err := h.orch.Handle(context.Background(), req)

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}

			if openai.calls.Load() != 0 || anthropic.calls.Load() != 0 {
				t.Error("no provider may be invoked for an invalid request")
			}
		})
	}
}

// ========== Plan selection ==========

// TestHandle_SingleProviderPreference verifies that a single-provider
// preference invokes exactly one client and attributes nothing to the other.
func TestHandle_SingleProviderPreference(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "openai says 4", usage: &ai.Usage{TotalTokens: 10}}
	anthropic := &fakeProvider{name: "anthropic", content: "anthropic says 4", usage: &ai.Usage{TotalTokens: 10}}
	h := newHarness(t, openai, anthropic)

	req := validRequest()
	req.Preference = PreferenceOpenAI

	result, err := h.orch.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if openai.calls.Load() != 1 || anthropic.calls.Load() != 0 {
		t.Errorf("expected exactly one openai call, got openai=%d anthropic=%d",
			openai.calls.Load(), anthropic.calls.Load())
	}

	if result.Merged != "openai says 4" {
		t.Errorf("expected passthrough of the selected provider, got %q", result.Merged)
	}

	if len(result.ProvidersUsed) != 1 || result.ProvidersUsed[0] != "openai" {
		t.Errorf("expected providers_used=[openai], got %v", result.ProvidersUsed)
	}

	if strings.Contains(result.Merged, "anthropic") || len(result.ProviderResults) != 0 {
		t.Error("result must carry no data attributed to the unselected provider")
	}
}

// TestHandle_HybridEqualLengths verifies that equal-length answers merge
// side-by-side rather than one side winning.
func TestHandle_HybridEqualLengths(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "aaaaaaaaaa", usage: &ai.Usage{TotalTokens: 5}}
	anthropic := &fakeProvider{name: "anthropic", content: "bbbbbbbbbb", usage: &ai.Usage{TotalTokens: 5}}
	h := newHarness(t, openai, anthropic)

	result, err := h.orch.Handle(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Merged, "[openai]") || !strings.Contains(result.Merged, "[anthropic]") {
		t.Errorf("expected side-by-side merge, got %q", result.Merged)
	}

	if len(result.ProviderResults) != 2 {
		t.Errorf("expected raw per-provider results in hybrid mode, got %d", len(result.ProviderResults))
	}
}

// TestHandle_ExampleScenario walks the canonical "2+2" flow: the longer
// answer wins with an omission note and both providers' tokens are charged.
func TestHandle_ExampleScenario(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "4", usage: &ai.Usage{TotalTokens: 3}}
	anthropic := &fakeProvider{name: "anthropic", content: "The answer is 4.", usage: &ai.Usage{TotalTokens: 9}}
	h := newHarness(t, openai, anthropic, withAllowance(100))

	req := Request{
		Prompt:      "2+2",
		Preference:  PreferenceAuto,
		Temperature: 0.7,
		MaxTokens:   100,
		Identity:    "u",
	}

	result, err := h.orch.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(result.Merged, "The answer is 4.") {
		t.Errorf("expected the longer answer to lead, got %q", result.Merged)
	}

	if !strings.Contains(result.Merged, "openai") {
		t.Errorf("expected note naming the omitted provider, got %q", result.Merged)
	}

	if used := h.ledger.Used("u"); used != 12 {
		t.Errorf("expected used=3+9=12, got %d", used)
	}
}

// ========== Tools ==========

// TestHandle_ToolsReachProviders covers the path from a reflection-generated
// tool description down to the provider request and back: both providers must
// receive the declared tool, and any tool calls they answer with must surface
// on the per-provider results.
func TestHandle_ToolsReachProviders(t *testing.T) {
	type weatherInput struct {
		Location string `json:"location" jsonschema:"description=City and country"`
		Unit     string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit"`
	}

	tool, err := ai.DescribeTool[weatherInput]("get_weather", "Look up current weather")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := ai.ToolCall{
		ID:   "call-1",
		Type: "function",
		Function: ai.ToolCallFunction{
			Name:      "get_weather",
			Arguments: `{"location":"Lisbon","unit":"celsius"}`,
		},
	}

	openai := &fakeProvider{name: "openai", content: "Checking the weather.", toolCalls: []ai.ToolCall{call}}
	anthropic := &fakeProvider{name: "anthropic", content: "One moment."}
	h := newHarness(t, openai, anthropic)

	result, err := h.orch.Handle(context.Background(), Request{
		Prompt:      "Weather in Lisbon?",
		Preference:  PreferenceHybrid,
		Temperature: 0.2,
		MaxTokens:   100,
		Tools:       []ai.ToolDescription{tool},
		Identity:    "u",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, provider := range []*fakeProvider{openai, anthropic} {
		seen := provider.lastRequest()
		if len(seen.Tools) != 1 || seen.Tools[0].Name != "get_weather" {
			t.Fatalf("%s: expected the weather tool in the request, got %+v", provider.name, seen.Tools)
		}
		if !strings.Contains(string(seen.Tools[0].Parameters), "location") {
			t.Errorf("%s: expected generated schema in the request, got %s", provider.name, seen.Tools[0].Parameters)
		}
	}

	var openaiResult *ProviderResult
	for i := range result.ProviderResults {
		if result.ProviderResults[i].Provider == "openai" {
			openaiResult = &result.ProviderResults[i]
		}
	}

	if openaiResult == nil {
		t.Fatalf("expected an openai provider result, got %+v", result.ProviderResults)
	}

	if len(openaiResult.ToolCalls) != 1 || openaiResult.ToolCalls[0].Function.Name != "get_weather" {
		t.Errorf("expected the tool call to surface, got %+v", openaiResult.ToolCalls)
	}
}

// ========== Cache ==========

// TestHandle_CacheIdempotence verifies that a repeat request within the TTL
// hits the cache with zero extra provider calls and zero ledger writes.
func TestHandle_CacheIdempotence(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "answer one", usage: &ai.Usage{TotalTokens: 10}}
	anthropic := &fakeProvider{name: "anthropic", content: "answer two", usage: &ai.Usage{TotalTokens: 10}}
	h := newHarness(t, openai, anthropic)

	req := validRequest()

	first, err := h.orch.Handle(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if first.CacheHit {
		t.Error("first call must not be a cache hit")
	}

	usedAfterFirst := h.ledger.Used(req.Identity)
	callsAfterFirst := openai.calls.Load() + anthropic.calls.Load()

	second, err := h.orch.Handle(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if !second.CacheHit {
		t.Error("second call must be a cache hit")
	}

	if second.Merged != first.Merged {
		t.Errorf("cached result differs: %q vs %q", second.Merged, first.Merged)
	}

	if got := openai.calls.Load() + anthropic.calls.Load(); got != callsAfterFirst {
		t.Errorf("cache hit must trigger zero provider calls, got %d extra", got-callsAfterFirst)
	}

	if got := h.ledger.Used(req.Identity); got != usedAfterFirst {
		t.Errorf("cache hit must record no usage, used went %d -> %d", usedAfterFirst, got)
	}
}

// TestHandle_NilCacheBypasses verifies that a missing cache degrades to
// bypass behavior instead of failing.
func TestHandle_NilCacheBypasses(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "fresh", usage: &ai.Usage{TotalTokens: 1}}
	anthropic := &fakeProvider{name: "anthropic", content: "fresh", usage: &ai.Usage{TotalTokens: 1}}

	openaiClient, err := client.New(openai)
	if err != nil {
		t.Fatal(err)
	}

	anthropicClient, err := client.New(anthropic)
	if err != nil {
		t.Fatal(err)
	}

	orch, err := New(Config{
		OpenAI:    ProviderConfig{Client: openaiClient, Model: "gpt-test"},
		Anthropic: ProviderConfig{Client: anthropicClient, Model: "claude-test"},
		Ledger:    ledger.New(1_000_000),
	})
	if err != nil {
		t.Fatal(err)
	}

	req := validRequest()

	for range 2 {
		result, err := orch.Handle(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}

		if result.CacheHit {
			t.Error("no cache means no cache hits")
		}
	}

	if got := openai.calls.Load(); got != 2 {
		t.Errorf("every call must reach the providers without a cache, got %d", got)
	}
}

// TestHandle_FingerprintNotIdentityScoped verifies the documented policy: two
// identities share a cached result for identical request parameters.
func TestHandle_FingerprintNotIdentityScoped(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "shared", usage: &ai.Usage{TotalTokens: 1}}
	anthropic := &fakeProvider{name: "anthropic", content: "shared", usage: &ai.Usage{TotalTokens: 1}}
	h := newHarness(t, openai, anthropic)

	first := validRequest()
	first.Identity = "alice"

	if _, err := h.orch.Handle(context.Background(), first); err != nil {
		t.Fatal(err)
	}

	second := validRequest()
	second.Identity = "bob"

	result, err := h.orch.Handle(context.Background(), second)
	if err != nil {
		t.Fatal(err)
	}

	if !result.CacheHit {
		t.Error("expected cross-identity cache hit")
	}

	if used := h.ledger.Used("bob"); used != 0 {
		t.Errorf("cache hit must not charge the second identity, used=%d", used)
	}
}

// ========== Quota ==========

// TestHandle_QuotaRejectedBeforeProviderCall verifies that an over-quota
// request never reaches a provider.
func TestHandle_QuotaRejectedBeforeProviderCall(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "x"}
	anthropic := &fakeProvider{name: "anthropic", content: "y"}
	h := newHarness(t, openai, anthropic, withAllowance(100))

	req := validRequest()
	req.MaxTokens = 101 // budget exceeds the remaining allowance

	_, err := h.orch.Handle(context.Background(), req)
	if !errors.Is(err, ledger.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	if openai.calls.Load() != 0 || anthropic.calls.Load() != 0 {
		t.Error("quota rejection must happen before any provider call")
	}
}

// TestHandle_QuotaMonotonicity verifies accumulation across successful calls
// up to the rejection point.
func TestHandle_QuotaMonotonicity(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "x", usage: &ai.Usage{TotalTokens: 30}}
	anthropic := &fakeProvider{name: "anthropic", content: "y", usage: &ai.Usage{TotalTokens: 30}}
	h := newHarness(t, openai, anthropic, withAllowance(150))

	base := validRequest()
	base.MaxTokens = 10

	// Two successful hybrid calls: 60 tokens each.
	for i, prompt := range []string{"first prompt", "second prompt"} {
		req := base
		req.Prompt = prompt

		if _, err := h.orch.Handle(context.Background(), req); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	if used := h.ledger.Used("alice"); used != 120 {
		t.Errorf("expected used=120, got %d", used)
	}

	// 120 used + budget 40 exceeds 150: rejected before invocation.
	req := base
	req.Prompt = "third prompt"
	req.MaxTokens = 40

	callsBefore := openai.calls.Load() + anthropic.calls.Load()

	_, err := h.orch.Handle(context.Background(), req)
	if !errors.Is(err, ledger.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	if got := openai.calls.Load() + anthropic.calls.Load(); got != callsBefore {
		t.Error("rejected call must not reach a provider")
	}
}

// ========== Failure handling ==========

// TestHandle_PartialHybridFailure verifies that the survivor's answer is
// returned annotated and only the survivor's usage is recorded.
func TestHandle_PartialHybridFailure(t *testing.T) {
	openai := &fakeProvider{name: "openai", err: errors.New("non-2xx status 500: down")}
	anthropic := &fakeProvider{name: "anthropic", content: "still here", usage: &ai.Usage{TotalTokens: 7}}
	h := newHarness(t, openai, anthropic)

	result, err := h.orch.Handle(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("partial failure must not be fatal, got %v", err)
	}

	if result.Merged != "still here" {
		t.Errorf("expected survivor's text, got %q", result.Merged)
	}

	if result.DroppedProvider != "openai" {
		t.Errorf("expected dropped provider annotation, got %q", result.DroppedProvider)
	}

	records := h.ledger.Records("alice")
	if len(records) != 1 || records[0].Provider != "anthropic" {
		t.Errorf("expected exactly one usage record for the survivor, got %+v", records)
	}
}

// TestHandle_AllProvidersFailed verifies the fatal case wraps both errors.
func TestHandle_AllProvidersFailed(t *testing.T) {
	openai := &fakeProvider{name: "openai", err: errors.New("openai down")}
	anthropic := &fakeProvider{name: "anthropic", err: errors.New("anthropic down")}
	h := newHarness(t, openai, anthropic)

	_, err := h.orch.Handle(context.Background(), validRequest())
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}

	var unavailable *ProviderUnavailableError
	if !errors.As(err, &unavailable) {
		t.Errorf("expected wrapped ProviderUnavailableError, got %v", err)
	}

	if !strings.Contains(err.Error(), "openai down") || !strings.Contains(err.Error(), "anthropic down") {
		t.Errorf("expected both provider errors in message, got %v", err)
	}
}

// TestHandle_SingleProviderFailureIsFatal verifies that with a one-provider
// plan there is no survivor to fall back to.
func TestHandle_SingleProviderFailureIsFatal(t *testing.T) {
	openai := &fakeProvider{name: "openai", err: errors.New("down")}
	anthropic := &fakeProvider{name: "anthropic", content: "unused"}
	h := newHarness(t, openai, anthropic)

	req := validRequest()
	req.Preference = PreferenceOpenAI

	_, err := h.orch.Handle(context.Background(), req)
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}

	if anthropic.calls.Load() != 0 {
		t.Error("the unselected provider must not be used as a fallback")
	}
}

// ========== Stats ==========

// TestStats_Accounting verifies success/failure counting and Reset.
func TestStats_Accounting(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "ok", usage: &ai.Usage{TotalTokens: 1}}
	anthropic := &fakeProvider{name: "anthropic", content: "ok", usage: &ai.Usage{TotalTokens: 1}}
	h := newHarness(t, openai, anthropic)

	if _, err := h.orch.Handle(context.Background(), validRequest()); err != nil {
		t.Fatal(err)
	}

	bad := validRequest()
	bad.Prompt = ""
	_, _ = h.orch.Handle(context.Background(), bad)

	snapshot := h.orch.Stats().Snapshot()
	if snapshot.Total != 2 || snapshot.Succeeded != 1 || snapshot.Failed != 1 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}

	if snapshot.SuccessRate != 0.5 {
		t.Errorf("expected success rate 0.5, got %v", snapshot.SuccessRate)
	}

	h.orch.Stats().Reset()

	if snapshot := h.orch.Stats().Snapshot(); snapshot.Total != 0 {
		t.Errorf("expected cleared stats, got %+v", snapshot)
	}
}

// ========== Streaming ==========

// TestHandleStreaming_MergedDeltasAndUsage verifies that both providers'
// deltas arrive tagged, usage is recorded from done events, and the final
// merge event closes the stream.
func TestHandleStreaming_MergedDeltasAndUsage(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "short", usage: &ai.Usage{TotalTokens: 4}}
	anthropic := &fakeProvider{name: "anthropic", content: "a much longer streamed answer", usage: &ai.Usage{TotalTokens: 12}}
	h := newHarness(t, openai, anthropic)

	stream, err := h.orch.HandleStreaming(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	providersSeen := map[string]bool{}
	var finalCount int

	for event, err := range stream.Iter() {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}

		switch event.Type {
		case merge.EventDelta:
			providersSeen[event.Provider] = true
		case merge.EventFinal:
			finalCount++
		}
	}

	if !providersSeen["openai"] || !providersSeen["anthropic"] {
		t.Errorf("expected deltas from both providers, got %v", providersSeen)
	}

	if finalCount != 1 {
		t.Errorf("expected exactly one final event, got %d", finalCount)
	}

	if used := h.ledger.Used("alice"); used != 16 {
		t.Errorf("expected usage 4+12=16 recorded from done events, got %d", used)
	}
}

// TestHandleStreaming_NeverConsultsCache verifies that a cached synchronous
// result does not short-circuit streaming.
func TestHandleStreaming_NeverConsultsCache(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "fresh", usage: &ai.Usage{TotalTokens: 1}}
	anthropic := &fakeProvider{name: "anthropic", content: "fresh", usage: &ai.Usage{TotalTokens: 1}}
	h := newHarness(t, openai, anthropic)

	req := validRequest()

	if _, err := h.orch.Handle(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	callsAfterSync := openai.calls.Load() + anthropic.calls.Load()

	stream, err := h.orch.HandleStreaming(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := stream.Collect(); err != nil {
		t.Fatal(err)
	}

	if got := openai.calls.Load() + anthropic.calls.Load(); got == callsAfterSync {
		t.Error("streaming must always reach the providers, even with a warm cache")
	}
}

// TestHandleStreaming_OpenFailureDropped verifies that a provider failing to
// open its stream is dropped while the other streams through.
func TestHandleStreaming_OpenFailureDropped(t *testing.T) {
	openai := &fakeProvider{name: "openai", streamErr: errors.New("refused")}
	anthropic := &fakeProvider{name: "anthropic", content: "alone", usage: &ai.Usage{TotalTokens: 2}}
	h := newHarness(t, openai, anthropic)

	stream, err := h.orch.HandleStreaming(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("one open failure must not be fatal, got %v", err)
	}

	final, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}

	if final != "alone" {
		t.Errorf("expected the survivor's text verbatim, got %q", final)
	}
}

// TestHandleStreaming_AllOpensFailed verifies the fatal case.
func TestHandleStreaming_AllOpensFailed(t *testing.T) {
	openai := &fakeProvider{name: "openai", streamErr: errors.New("refused a")}
	anthropic := &fakeProvider{name: "anthropic", streamErr: errors.New("refused b")}
	h := newHarness(t, openai, anthropic)

	_, err := h.orch.HandleStreaming(context.Background(), validRequest())
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
}

// TestHandleStreaming_CancelledRecordsNoUsage verifies that a context
// cancelled before done events arrive suppresses ledger writes.
func TestHandleStreaming_CancelledRecordsNoUsage(t *testing.T) {
	openai := &fakeProvider{name: "openai", content: "x", usage: &ai.Usage{TotalTokens: 100}}
	anthropic := &fakeProvider{name: "anthropic", content: "y", usage: &ai.Usage{TotalTokens: 100}}
	h := newHarness(t, openai, anthropic)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before any event is consumed

	stream, err := h.orch.HandleStreaming(ctx, validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, err := range stream.Iter() {
		if err != nil {
			break
		}
	}

	if used := h.ledger.Used("alice"); used != 0 {
		t.Errorf("cancelled call must record no usage, got %d", used)
	}
}

// ========== Fingerprint ==========

// TestFingerprint_Deterministic verifies stability and sensitivity of the key.
func TestFingerprint_Deterministic(t *testing.T) {
	base := validRequest()

	if fingerprint(base) != fingerprint(base) {
		t.Error("identical requests must share a fingerprint")
	}

	changed := base
	changed.Temperature = 0.8
	if fingerprint(changed) == fingerprint(base) {
		t.Error("temperature change must change the fingerprint")
	}

	changed = base
	changed.Preference = PreferenceOpenAI
	if fingerprint(changed) == fingerprint(base) {
		t.Error("preference change must change the fingerprint")
	}

	// Identity is not part of the key.
	changed = base
	changed.Identity = "someone-else"
	if fingerprint(changed) != fingerprint(base) {
		t.Error("identity must not affect the fingerprint")
	}
}
