package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxTokens = 4096

// RequestState is the engine's position within one user request.
type RequestState int32

const (
	StateIdle RequestState = iota
	StateAwaitingModel
	StateDispatching
	StateAwaitingToolFollowup
)

func (s RequestState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingToolFollowup:
		return "awaiting_tool_followup"
	default:
		return "unknown"
	}
}

// Toolbox executes the tools the engine advertises. Execute returns an error
// only for a name it does not know; tool failures are error results.
type Toolbox interface {
	Specs() []ToolSpec
	Execute(ctx context.Context, use ToolUse) (ToolResult, error)
}

// Sink receives everything the user should see.
type Sink interface {
	// Delta is a streamed text fragment.
	Delta(text string)
	// Reply is the complete text of an assistant turn. streamed reports
	// whether its fragments were already delivered through Delta.
	Reply(text string, streamed bool)
	ToolStart(use ToolUse)
	ToolDone(use ToolUse, result ToolResult)
	Error(err error)
}

type nopSink struct{}

func (nopSink) Delta(string) {}
func (nopSink) Reply(string, bool) {}
func (nopSink) ToolStart(ToolUse) {}
func (nopSink) ToolDone(ToolUse, ToolResult) {}
func (nopSink) Error(error) {}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithModel(model string) EngineOption {
	return func(e *Engine) { e.model = model }
}

func WithSystemPrompt(prompt string) EngineOption {
	return func(e *Engine) { e.system = prompt }
}

func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func WithSink(sink Sink) EngineOption {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithParallelTools runs the tool calls of one turn concurrently. Results keep
// the order of the tool uses.
func WithParallelTools(parallel bool) EngineOption {
	return func(e *Engine) { e.parallel = parallel }
}

func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

func WithMaxTokens(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// Engine owns the conversation and runs the tool protocol against a Client.
type Engine struct {
	client    Client
	tools     Toolbox
	config    *ToolConfiguration
	model     string
	system    string
	maxTokens int
	parallel  bool
	logger    zerolog.Logger
	sink      Sink
	tracer    trace.Tracer

	// mu serialises requests; only one model turn is in flight.
	mu    sync.Mutex
	state atomic.Int32

	histMu     sync.RWMutex
	transcript []Turn
}

// NewEngine registers the toolbox's specs and returns an idle engine.
func NewEngine(client Client, tools Toolbox, opts ...EngineOption) (*Engine, error) {
	if client == nil {
		return nil, errors.New("engine: nil client")
	}
	e := &Engine{
		client:    client,
		tools:     tools,
		maxTokens: defaultMaxTokens,
		logger:    zerolog.Nop(),
		sink:      nopSink{},
		tracer:    otel.Tracer("github.com/itsuki0/term-assistant/internal/llm"),
	}
	for _, opt := range opts {
		opt(e)
	}
	var specs []ToolSpec
	if tools != nil {
		specs = tools.Specs()
	}
	cfg, err := RegisterTools(specs)
	if err != nil {
		return nil, err
	}
	e.config = cfg
	return e, nil
}

func (e *Engine) State() RequestState {
	return RequestState(e.state.Load())
}

func (e *Engine) setState(s RequestState) {
	e.state.Store(int32(s))
}

// Tools returns the registered tool configuration.
func (e *Engine) Tools() *ToolConfiguration {
	return e.config
}

// Transcript returns a deep copy of the conversation.
func (e *Engine) Transcript() []Turn {
	e.histMu.RLock()
	defer e.histMu.RUnlock()
	out := make([]Turn, len(e.transcript))
	for i, t := range e.transcript {
		out[i] = t.Clone()
	}
	return out
}

// Reset clears the conversation.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.histMu.Lock()
	e.transcript = nil
	e.histMu.Unlock()
}

func (e *Engine) appendTurn(t Turn) error {
	if err := t.Validate(); err != nil {
		return err
	}
	e.histMu.Lock()
	e.transcript = append(e.transcript, t.Clone())
	e.histMu.Unlock()
	return nil
}

// Submit runs one user request with request/response model turns.
func (e *Engine) Submit(ctx context.Context, text string) error {
	return e.run(ctx, text, false)
}

// SubmitStream runs one user request with streamed model turns.
func (e *Engine) SubmitStream(ctx context.Context, text string) error {
	return e.run(ctx, text, true)
}

func (e *Engine) run(ctx context.Context, text string, stream bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.setState(StateIdle)

	ctx, span := e.tracer.Start(ctx, "conversation.request",
		trace.WithAttributes(
			attribute.Bool("stream", stream),
			attribute.String("model", e.model),
			attribute.String("client", e.client.Name()),
		))
	defer span.End()

	if err := e.appendTurn(UserText(text)); err != nil {
		return e.fail(span, err)
	}
	e.logger.Debug().Bool("stream", stream).Int("turns", len(e.transcript)).Msg("request started")

	e.setState(StateAwaitingModel)
	turn, err := e.modelTurn(ctx, stream)
	if err != nil {
		return e.fail(span, err)
	}
	if err := e.appendTurn(turn); err != nil {
		return e.fail(span, err)
	}

	uses := turn.ToolUses()
	if len(uses) == 0 {
		e.sink.Reply(turn.Text(), stream)
		return nil
	}
	if preamble := turn.Text(); preamble != "" {
		e.sink.Reply(preamble, stream)
	}
	seen := make(map[string]bool, len(uses))
	for _, use := range uses {
		if !e.config.Has(use.Name) {
			return e.fail(span, unknownTool(use.Name))
		}
		if seen[use.ID] {
			return e.fail(span, protocolErrorf("duplicate tool use id %q", use.ID))
		}
		seen[use.ID] = true
	}

	e.setState(StateDispatching)
	results, err := e.dispatch(ctx, uses)
	if err != nil {
		return e.fail(span, err)
	}
	blocks := make([]ContentBlock, len(results))
	for i, res := range results {
		if res.ToolUseID != uses[i].ID {
			return e.fail(span, protocolErrorf("tool result %q does not answer tool use %q", res.ToolUseID, uses[i].ID))
		}
		blocks[i] = ToolResultBlock(res)
	}
	if err := e.appendTurn(Turn{Role: RoleUser, Content: blocks}); err != nil {
		return e.fail(span, err)
	}

	e.setState(StateAwaitingToolFollowup)
	followup, err := e.modelTurn(ctx, stream)
	if err != nil {
		return e.fail(span, err)
	}
	if n := len(followup.ToolUses()); n > 0 {
		e.logger.Warn().Int("tool_uses", n).Msg("follow-up turn requested tools; not executed")
		// an unanswered tool use would make every later request invalid
		followup = AssistantText(followup.Text())
	}
	if err := e.appendTurn(followup); err != nil {
		return e.fail(span, err)
	}
	e.sink.Reply(followup.Text(), stream)
	return nil
}

func (e *Engine) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var transportErr *TransportError
	switch {
	case errors.As(err, &transportErr):
		e.logger.Error().Err(err).Str("op", transportErr.Op).Msg("model service request failed")
	case errors.Is(err, ErrUnknownTool):
		e.logger.Error().Err(err).Msg("request aborted")
	default:
		e.logger.Error().Err(err).Msg("request failed")
	}
	e.sink.Error(err)
	return err
}

func (e *Engine) request() Request {
	return Request{
		Model:     e.model,
		System:    e.system,
		Messages:  e.Transcript(),
		Tools:     e.config,
		MaxTokens: e.maxTokens,
	}
}

// modelTurn requests one assistant turn with the current transcript.
func (e *Engine) modelTurn(ctx context.Context, stream bool) (Turn, error) {
	ctx, span := e.tracer.Start(ctx, "conversation.model_turn")
	defer span.End()

	req := e.request()
	if !stream {
		resp, err := e.client.Converse(ctx, req)
		if err != nil {
			return Turn{}, asTransportError("converse", err)
		}
		if resp == nil || resp.Message == nil {
			return Turn{}, protocolErrorf("Output is not a message")
		}
		recordUsage(span, resp.Usage)
		return assistantTurn(*resp.Message)
	}

	s, err := e.client.ConverseStream(ctx, req)
	if err != nil {
		return Turn{}, asTransportError("converse stream", err)
	}
	defer s.Close()

	asm := NewAssembler()
	var done *Assembled
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Turn{}, asTransportError("converse stream", err)
		}
		if ev.Type == EventContentBlockDelta && ev.Delta == DeltaText && ev.Text != "" {
			e.sink.Delta(ev.Text)
		}
		out, err := asm.Apply(ev)
		if err != nil {
			return Turn{}, err
		}
		if out != nil {
			done = out
		}
	}
	if done == nil {
		return Turn{}, protocolErrorf("stream ended before message stop")
	}
	recordUsage(span, asm.Usage())
	return done.Turn, nil
}

func assistantTurn(t Turn) (Turn, error) {
	if t.Role != RoleAssistant {
		return Turn{}, protocolErrorf("expected assistant message, got %s", t.Role)
	}
	if len(t.Content) == 0 {
		t.Content = []ContentBlock{TextBlock("")}
	}
	return t, nil
}

func recordUsage(span trace.Span, u *Usage) {
	if u == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("usage.input_tokens", u.InputTokens),
		attribute.Int("usage.output_tokens", u.OutputTokens),
	)
}

// asTransportError keeps typed errors from the client and wraps the rest.
func asTransportError(op string, err error) error {
	var (
		transportErr *TransportError
		protocolErr  *ProtocolError
	)
	if errors.As(err, &transportErr) || errors.As(err, &protocolErr) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

type toolOutcome struct {
	result ToolResult
	err    error
}

func (e *Engine) dispatch(ctx context.Context, uses []ToolUse) ([]ToolResult, error) {
	var outcomes []toolOutcome
	if e.parallel && len(uses) > 1 {
		outcomes = iter.Map(uses, func(use *ToolUse) toolOutcome {
			return e.execute(ctx, *use)
		})
	} else {
		outcomes = make([]toolOutcome, len(uses))
		for i, use := range uses {
			outcomes[i] = e.execute(ctx, use)
		}
	}
	results := make([]ToolResult, len(outcomes))
	for i, out := range outcomes {
		if out.err != nil {
			return nil, out.err
		}
		results[i] = out.result
	}
	return results, nil
}

func (e *Engine) execute(ctx context.Context, use ToolUse) toolOutcome {
	ctx, span := e.tracer.Start(ctx, "tool."+use.Name,
		trace.WithAttributes(attribute.String("tool.use_id", use.ID)))
	defer span.End()

	log := e.logger.With().Str("tool", use.Name).Str("tool_use_id", use.ID).Logger()
	log.Debug().Str("input", use.Input.String()).Msg("dispatching tool")
	e.sink.ToolStart(use)

	if err := e.config.ValidateInput(use.Name, use.Input); err != nil {
		if errors.Is(err, ErrUnknownTool) {
			return toolOutcome{err: err}
		}
		res := TextResult(use.ID, ToolError, fmt.Sprintf("Invalid input for %s: %v", use.Name, err))
		log.Warn().Err(err).Msg("tool input rejected")
		span.SetStatus(codes.Error, "invalid input")
		e.sink.ToolDone(use, res)
		return toolOutcome{result: res}
	}

	res, err := e.tools.Execute(ctx, use)
	if err != nil {
		span.RecordError(err)
		return toolOutcome{err: err}
	}
	if res.Status == ToolError {
		span.SetStatus(codes.Error, res.Summary())
		log.Warn().Str("result", res.Summary()).Msg("tool failed")
	} else {
		log.Debug().Msg("tool succeeded")
	}
	e.sink.ToolDone(use, res)
	return toolOutcome{result: res}
}
