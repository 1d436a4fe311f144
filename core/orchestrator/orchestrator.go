package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leofalp/duet/core/cache"
	"github.com/leofalp/duet/core/client"
	"github.com/leofalp/duet/core/history"
	"github.com/leofalp/duet/core/ledger"
	"github.com/leofalp/duet/core/merge"
	"github.com/leofalp/duet/core/prompt"
	"github.com/leofalp/duet/internal/utils"
	"github.com/leofalp/duet/providers/ai"
)

// defaultHistoryLimit caps how many prior turns are prepended to a request
// when a conversation is supplied.
const defaultHistoryLimit = 20

// ProviderResult is one provider's raw completed answer. Immutable once
// produced.
type ProviderResult struct {
	Provider  string        `json:"provider"`
	Text      string        `json:"text"`
	Tokens    int64         `json:"tokens"`
	Latency   time.Duration `json:"latency"`
	ToolCalls []ai.ToolCall `json:"tool_calls,omitempty"`
}

// Result is the unit returned to callers and stored in the cache.
type Result struct {
	Merged          string           `json:"merged"`
	ProviderResults []ProviderResult `json:"provider_results,omitempty"` // hybrid mode only
	ProvidersUsed   []string         `json:"providers_used"`
	DroppedProvider string           `json:"dropped_provider,omitempty"` // set on partial hybrid failure
	Duration        time.Duration    `json:"duration"`
	CacheHit        bool             `json:"cache_hit"`
}

// ProviderConfig pairs a provider's client with the model requests should use.
type ProviderConfig struct {
	Client *client.Client
	Model  string
}

// Config wires the orchestrator's collaborators. OpenAI, Anthropic, and
// Ledger are required; History, Stats, and Logger are optional. A nil Cache
// disables response caching without otherwise changing behavior.
type Config struct {
	OpenAI    ProviderConfig
	Anthropic ProviderConfig

	Cache  *cache.Cache[Result]
	Ledger *ledger.Ledger

	// History, when set, supplies prior turns for requests that carry a
	// conversation id. The orchestrator never writes to it.
	History      history.Store
	HistoryLimit int

	Stats  *Stats
	Logger *slog.Logger
}

// Orchestrator coordinates provider calls, merging, caching, and quota
// enforcement. Safe for concurrent use; per-request state lives on the stack.
type Orchestrator struct {
	openai       ProviderConfig
	anthropic    ProviderConfig
	cache        *cache.Cache[Result]
	ledger       *ledger.Ledger
	history      history.Store
	historyLimit int
	stats        *Stats
	logger       *slog.Logger
}

// New validates the configuration and builds an Orchestrator.
func New(config Config) (*Orchestrator, error) {
	if config.OpenAI.Client == nil || config.Anthropic.Client == nil {
		return nil, fmt.Errorf("orchestrator: both provider clients are required")
	}

	if config.Ledger == nil {
		return nil, fmt.Errorf("orchestrator: ledger is required")
	}

	if config.Stats == nil {
		config.Stats = NewStats()
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.HistoryLimit <= 0 {
		config.HistoryLimit = defaultHistoryLimit
	}

	return &Orchestrator{
		openai:       config.OpenAI,
		anthropic:    config.Anthropic,
		cache:        config.Cache,
		ledger:       config.Ledger,
		history:      config.History,
		historyLimit: config.HistoryLimit,
		stats:        config.Stats,
		logger:       config.Logger,
	}, nil
}

// Stats exposes the orchestrator's counters for the read-only stats surface.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// target is one provider selected by the execution plan.
type target struct {
	name   string
	client *client.Client
	model  string
}

// plan maps the preference to the providers to invoke. The switch is
// exhaustive over the closed enum; an out-of-range value is a validation
// failure, never a silent default.
func (o *Orchestrator) plan(preference Preference) ([]target, error) {
	openai := target{name: o.openai.Client.Name(), client: o.openai.Client, model: o.openai.Model}
	anthropic := target{name: o.anthropic.Client.Name(), client: o.anthropic.Client, model: o.anthropic.Model}

	switch preference {
	case PreferenceOpenAI:
		return []target{openai}, nil
	case PreferenceAnthropic:
		return []target{anthropic}, nil
	case PreferenceHybrid, PreferenceAuto:
		return []target{openai, anthropic}, nil
	default:
		return nil, &ValidationError{Field: "preference", Reason: "unknown value"}
	}
}

// Handle executes one synchronous orchestration: cache consult, quota check,
// concurrent provider calls, merge, usage recording, cache fill.
//
// A cache hit short-circuits before any provider call and records no usage.
// In hybrid mode a single provider failure is tolerated: the survivor's
// answer is returned with DroppedProvider set. Only total failure is fatal.
// When ctx is cancelled before completion, neither usage nor cache is written.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		o.stats.recordFailure()
		return nil, err
	}

	start := time.Now()
	key := fingerprint(req)

	// A nil cache degrades to bypass behavior, never an error.
	if o.cache != nil {
		if cached, ok := o.cache.Get(key); ok {
			cached.CacheHit = true
			o.stats.recordSuccess()
			o.logger.DebugContext(ctx, "cache hit", slog.String("fingerprint", key[:12]))
			return &cached, nil
		}
	}

	targets, err := o.plan(req.Preference)
	if err != nil {
		o.stats.recordFailure()
		return nil, err
	}

	// Admission uses the request's output budget as the estimate.
	if err := o.ledger.Check(req.Identity, int64(req.MaxTokens)); err != nil {
		o.stats.recordFailure()
		return nil, err
	}

	chatRequest, err := o.buildChatRequest(ctx, req)
	if err != nil {
		o.stats.recordFailure()
		return nil, err
	}

	outcomes := o.execute(ctx, targets, chatRequest)

	succeeded := make([]outcome, 0, len(outcomes))
	failed := make([]outcome, 0, len(outcomes))
	for _, out := range outcomes {
		if out.err != nil {
			failed = append(failed, out)
			o.logger.WarnContext(ctx, "provider failed",
				slog.String("provider", out.provider),
				slog.String("error", out.err.Error()),
			)
			continue
		}
		succeeded = append(succeeded, out)
	}

	if len(succeeded) == 0 {
		o.stats.recordFailure()
		return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, joinOutcomeErrors(failed))
	}

	result := o.assemble(req, succeeded, failed)
	result.Duration = time.Since(start)

	// A cancelled caller gets nothing recorded and nothing cached.
	if ctx.Err() != nil {
		o.stats.recordFailure()
		return nil, ctx.Err()
	}

	for _, out := range succeeded {
		o.recordUsage(req.Identity, out)
	}

	if o.cache != nil {
		o.cache.Put(key, *result)
	}
	o.stats.recordSuccess()

	return result, nil
}

// HandleStreaming executes one streaming orchestration. The cache is never
// consulted: waiting for a full merged answer to fill or hit the cache would
// defeat first-token latency, so streaming always goes to the providers.
//
// Providers that fail to open their stream are dropped from the merge; if
// none opens, the call fails. The returned stream records each provider's
// usage when its done event arrives, unless ctx was already cancelled.
func (o *Orchestrator) HandleStreaming(ctx context.Context, req Request) (*merge.Stream, error) {
	if err := req.Validate(); err != nil {
		o.stats.recordFailure()
		return nil, err
	}

	targets, err := o.plan(req.Preference)
	if err != nil {
		o.stats.recordFailure()
		return nil, err
	}

	if err := o.ledger.Check(req.Identity, int64(req.MaxTokens)); err != nil {
		o.stats.recordFailure()
		return nil, err
	}

	chatRequest, err := o.buildChatRequest(ctx, req)
	if err != nil {
		o.stats.recordFailure()
		return nil, err
	}

	inputs := make([]merge.Input, 0, len(targets))
	var openErrors []outcome

	for _, t := range targets {
		perProvider := chatRequest
		perProvider.Model = t.model

		stream, err := t.client.Stream(ctx, perProvider)
		if err != nil {
			openErrors = append(openErrors, outcome{provider: t.name, err: &ProviderUnavailableError{Provider: t.name, Err: err}})
			o.logger.WarnContext(ctx, "provider stream failed to open",
				slog.String("provider", t.name),
				slog.String("error", err.Error()),
			)
			continue
		}

		inputs = append(inputs, merge.Input{Provider: t.name, Stream: stream})
	}

	if len(inputs) == 0 {
		o.stats.recordFailure()
		return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, joinOutcomeErrors(openErrors))
	}

	merged := merge.Streams(ctx, inputs)
	return o.wrapUsageRecording(ctx, req.Identity, merged), nil
}

// outcome is one provider call's terminal state.
type outcome struct {
	provider string
	response *ai.ChatResponse
	latency  time.Duration
	err      error
}

// execute runs all targets concurrently and joins them. Failures are captured
// per provider; a failing call never aborts its sibling.
func (o *Orchestrator) execute(ctx context.Context, targets []target, chatRequest ai.ChatRequest) []outcome {
	outcomes := make([]outcome, len(targets))

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t target) {
			defer wg.Done()

			perProvider := chatRequest
			perProvider.Model = t.model

			timer := utils.NewTimer()
			response, err := t.client.Send(ctx, perProvider)
			latency := timer.Stop()

			if err != nil {
				outcomes[i] = outcome{provider: t.name, latency: latency, err: &ProviderUnavailableError{Provider: t.name, Err: err}}
				return
			}

			outcomes[i] = outcome{provider: t.name, response: response, latency: latency}
		}(i, t)
	}
	wg.Wait()

	return outcomes
}

// assemble builds the Result from successful outcomes, applying the merge
// policy and annotating partial hybrid failures.
func (o *Orchestrator) assemble(req Request, succeeded, failed []outcome) *Result {
	result := &Result{}

	for _, out := range succeeded {
		result.ProvidersUsed = append(result.ProvidersUsed, out.provider)
	}

	hybrid := req.Preference == PreferenceHybrid || req.Preference == PreferenceAuto

	switch {
	case len(succeeded) >= 2:
		a, b := succeeded[0], succeeded[1]
		result.Merged = merge.Final(
			merge.Candidate{Provider: a.provider, Content: a.response.Content},
			merge.Candidate{Provider: b.provider, Content: b.response.Content},
		)
	default:
		result.Merged = succeeded[0].response.Content

		if hybrid && len(failed) > 0 {
			result.DroppedProvider = failed[0].provider
		}
	}

	if hybrid {
		for _, out := range succeeded {
			result.ProviderResults = append(result.ProviderResults, ProviderResult{
				Provider:  out.provider,
				Text:      out.response.Content,
				Tokens:    totalTokens(out.response.Usage),
				Latency:   out.latency,
				ToolCalls: out.response.ToolCalls,
			})
		}
	}

	return result
}

// buildChatRequest assembles the provider-agnostic request, reading prior
// conversation turns when a store and conversation id are available.
func (o *Orchestrator) buildChatRequest(ctx context.Context, req Request) (ai.ChatRequest, error) {
	var priorTurns []ai.Message

	if o.history != nil && req.ConversationID != "" {
		turns, err := o.history.ReadTurns(ctx, req.ConversationID, o.historyLimit)
		if err != nil {
			// History is best-effort context, not a hard dependency.
			o.logger.WarnContext(ctx, "history read failed",
				slog.String("conversation_id", req.ConversationID),
				slog.String("error", err.Error()),
			)
		} else {
			for _, turn := range turns {
				priorTurns = append(priorTurns, ai.Message{Role: ai.MessageRole(turn.Role), Content: turn.Text})
			}
		}
	}

	messages, err := prompt.BuildMessages(req.Prompt, req.Documents, priorTurns)
	if err != nil {
		return ai.ChatRequest{}, &ValidationError{Field: "documents", Reason: err.Error()}
	}

	return ai.ChatRequest{
		Messages: messages,
		Tools:    req.Tools,
		GenerationConfig: &ai.GenerationConfig{
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		},
	}, nil
}

// wrapUsageRecording returns a stream that forwards every event and records
// usage as provider-done events pass through. A cancelled context suppresses
// recording entirely.
func (o *Orchestrator) wrapUsageRecording(ctx context.Context, identity string, merged *merge.Stream) *merge.Stream {
	iteratorFunc := func(yield func(merge.Event, error) bool) {
		succeeded := false

		for event, err := range merged.Iter() {
			if err != nil {
				o.stats.recordFailure()
				yield(event, err)
				return
			}

			if event.Type == merge.EventProviderDone && ctx.Err() == nil {
				o.recordUsage(identity, outcome{
					provider: event.Provider,
					response: &ai.ChatResponse{Usage: event.Usage},
				})
			}

			if event.Type == merge.EventFinal {
				succeeded = true
			}

			if !yield(event, nil) {
				return
			}
		}

		if succeeded {
			o.stats.recordSuccess()
		}
	}

	return merge.NewStream(iteratorFunc)
}

// recordUsage writes one ledger entry for a successful provider call.
func (o *Orchestrator) recordUsage(identity string, out outcome) {
	var usage ai.Usage
	if out.response != nil && out.response.Usage != nil {
		usage = *out.response.Usage
	}

	o.ledger.Record(ledger.Record{
		Identity: identity,
		Provider: out.provider,
		Tokens:   totalTokens(&usage),
		Cost:     ledger.CostOf(out.provider, usage),
	})
}

// totalTokens returns the usage total, tolerating nil and unset totals.
func totalTokens(usage *ai.Usage) int64 {
	if usage == nil {
		return 0
	}

	if usage.TotalTokens > 0 {
		return int64(usage.TotalTokens)
	}

	return int64(usage.PromptTokens + usage.CompletionTokens)
}

// joinOutcomeErrors flattens per-provider failures into one wrapped error.
func joinOutcomeErrors(failed []outcome) error {
	if len(failed) == 0 {
		return fmt.Errorf("no providers selected")
	}

	err := failed[0].err
	for _, out := range failed[1:] {
		err = fmt.Errorf("%w; %w", err, out.err)
	}

	return err
}
