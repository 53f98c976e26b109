package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MockClient replays scripted turns. Both Converse and ConverseStream
// consume the same script, so one script drives either mode.
type MockClient struct {
	name string

	mu       sync.Mutex
	script   []mockStep
	requests []Request
	// Chunk is the fragment size used when a turn is streamed.
	Chunk int
}

type mockStep struct {
	turn   *Turn
	stop   StopReason
	err    error
	events []StreamEvent
}

func NewMockClient(name string) *MockClient {
	return &MockClient{name: name, Chunk: 4}
}

func (m *MockClient) Name() string { return m.name }

// AddTurn scripts an assistant turn. The stop reason is derived from its
// content.
func (m *MockClient) AddTurn(t Turn) *MockClient {
	stop := StopEndTurn
	if len(t.ToolUses()) > 0 {
		stop = StopToolUse
	}
	m.mu.Lock()
	m.script = append(m.script, mockStep{turn: &t, stop: stop})
	m.mu.Unlock()
	return m
}

func (m *MockClient) AddText(text string) *MockClient {
	return m.AddTurn(AssistantText(text))
}

// AddToolCall scripts an assistant turn that calls one tool.
func (m *MockClient) AddToolCall(id, name string, input Value) *MockClient {
	return m.AddTurn(Turn{Role: RoleAssistant, Content: []ContentBlock{ToolUseBlock(id, name, input)}})
}

// AddError scripts a transport failure.
func (m *MockClient) AddError(err error) *MockClient {
	m.mu.Lock()
	m.script = append(m.script, mockStep{err: err})
	m.mu.Unlock()
	return m
}

// AddNonMessage scripts a response without a message.
func (m *MockClient) AddNonMessage() *MockClient {
	m.mu.Lock()
	m.script = append(m.script, mockStep{})
	m.mu.Unlock()
	return m
}

// AddEvents scripts a raw event sequence for streaming.
func (m *MockClient) AddEvents(events ...StreamEvent) *MockClient {
	m.mu.Lock()
	m.script = append(m.script, mockStep{events: events})
	m.mu.Unlock()
	return m
}

// Requests returns the requests received so far.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Remaining reports how many scripted steps are left.
func (m *MockClient) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}

func (m *MockClient) next(req Request) (mockStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.script) == 0 {
		return mockStep{}, fmt.Errorf("mock %s: no scripted response", m.name)
	}
	step := m.script[0]
	m.script = m.script[1:]
	return step, nil
}

func (m *MockClient) Converse(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, err := m.next(req)
	if err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	if step.turn == nil {
		return &Response{}, nil
	}
	t := step.turn.Clone()
	return &Response{Message: &t, StopReason: step.stop}, nil
}

func (m *MockClient) ConverseStream(ctx context.Context, req Request) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, err := m.next(req)
	if err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	events := step.events
	if step.turn != nil {
		events = TurnEvents(*step.turn, step.stop, m.Chunk)
	}
	return &sliceStream{ctx: ctx, events: events}, nil
}

// TurnEvents renders a turn as the event sequence a streaming service would
// send, splitting text and tool input into fragments of at most chunk bytes.
func TurnEvents(t Turn, stop StopReason, chunk int) []StreamEvent {
	if chunk <= 0 {
		chunk = 1
	}
	events := []StreamEvent{{Type: EventMessageStart}}
	for i, block := range t.Content {
		switch block.Type {
		case BlockText:
			for _, frag := range split(block.Text, chunk) {
				events = append(events, StreamEvent{Type: EventContentBlockDelta, Index: i, Delta: DeltaText, Text: frag})
			}
		case BlockToolUse:
			use := block.ToolUse
			events = append(events, StreamEvent{
				Type:      EventContentBlockStart,
				Index:     i,
				ToolStart: &ToolUseStart{ID: use.ID, Name: use.Name},
			})
			data, _ := json.Marshal(use.Input)
			for _, frag := range split(string(data), chunk) {
				events = append(events, StreamEvent{Type: EventContentBlockDelta, Index: i, Delta: DeltaToolInput, Text: frag})
			}
		}
		events = append(events, StreamEvent{Type: EventContentBlockStop, Index: i})
	}
	events = append(events,
		StreamEvent{Type: EventMessageStop, StopReason: stop},
		StreamEvent{Type: EventMetadata, Usage: &Usage{InputTokens: 10, OutputTokens: 5}},
	)
	return events
}

func split(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

type sliceStream struct {
	ctx    context.Context
	events []StreamEvent
	closed bool
}

func (s *sliceStream) Recv() (StreamEvent, error) {
	if s.closed {
		return StreamEvent{}, io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		return StreamEvent{}, err
	}
	if len(s.events) == 0 {
		return StreamEvent{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}
