package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rrens/smart-chat/internal/domain"
	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/Rrens/smart-chat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, client llm.Client, opts ...ControllerOption) *Controller {
	t.Helper()
	return NewController(newLoadedSessions(t, memory.NewStore()), client, opts...)
}

func lastMessage(t *testing.T, c *Controller) domain.Message {
	t.Helper()
	msgs := c.Transcript().Messages
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	return domain.Message{Role: last.Role, Content: last.Content}
}

// sendAsync runs Send in the background and returns a channel closed when
// it has returned
func sendAsync(t *testing.T, c *Controller, text string) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ok, err := c.Send(context.Background(), text)
		assert.NoError(t, err)
		assert.True(t, ok)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("send did not return")
	}
}

func TestController_StreamedReplyIsAccumulated(t *testing.T) {
	client := &fakeStreamClient{chunks: []string{"Hel", "lo ", "world"}}
	c := newTestController(t, client)

	ok, err := c.Send(context.Background(), "  say hi  ")
	require.NoError(t, err)
	assert.True(t, ok)

	msgs := c.sessions.Current().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, domain.NewUserMessage("say hi"), msgs[1])
	assert.Equal(t, domain.NewAssistantMessage("Hello world"), msgs[2])

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Typing())

	req := client.lastRequest()
	assert.Equal(t, []llm.Turn{
		{Role: "assistant", Content: domain.DefaultGreeting},
		{Role: "user", Content: "say hi"},
	}, req.Turns)
}

func TestController_CompleteReply(t *testing.T) {
	client := new(MockClient)
	maxTokens := 256
	opts := llm.Options{MaxTokens: &maxTokens}
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Options.MaxTokens != nil && *req.Options.MaxTokens == 256 && len(req.Turns) == 2
	})).Return("Sure, here it is.", nil)

	c := newTestController(t, client, WithGenerationOptions(opts))
	c.SetInput("draft")

	ok, err := c.Send(context.Background(), "write a haiku")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, domain.NewAssistantMessage("Sure, here it is."), lastMessage(t, c))
	assert.Equal(t, "", c.Input(), "input is cleared by a send")
	client.AssertExpectations(t)
}

func TestController_BlankInputIsIgnored(t *testing.T) {
	client := new(MockClient)
	c := newTestController(t, client)

	for _, text := range []string{"", "   ", "\n\t"} {
		ok, err := c.Send(context.Background(), text)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	assert.Equal(t, domain.DefaultMessages(), c.sessions.Current().Messages)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestController_FailureFallsBackToHeuristic(t *testing.T) {
	tests := []struct {
		name   string
		client llm.Client
	}{
		{name: "not configured", client: nil},
		{name: "unreachable", client: &fakeStreamClient{streamErr: &llm.UnreachableError{Provider: "chat proxy", Err: errors.New("dial tcp: refused")}}},
		{name: "upstream status", client: &fakeStreamClient{streamErr: &llm.StatusError{Provider: "azure", StatusCode: 502}}},
		{name: "stream fails before any chunk", client: &fakeStreamClient{err: errors.New("connection reset")}},
		{name: "stream ends empty", client: &fakeStreamClient{chunks: []string{"", "  "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(t, tt.client)

			ok, err := c.Send(context.Background(), "hello")
			require.NoError(t, err)
			assert.True(t, ok)

			msgs := c.sessions.Current().Messages
			require.Len(t, msgs, 3, "exactly one reply is appended")
			assert.Equal(t, domain.NewAssistantMessage(HeuristicReply("hello")), msgs[2])
			assert.Equal(t, "Hey there! What would you like to work on?", msgs[2].Content)
			assert.Equal(t, StateIdle, c.State())
		})
	}
}

func TestController_EmptyCompletionFallsBack(t *testing.T) {
	client := new(MockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return("   ", nil)
	c := newTestController(t, client)

	_, err := c.Send(context.Background(), "what can you do?")
	require.NoError(t, err)
	assert.Equal(t, HeuristicReply("what can you do?"), lastMessage(t, c).Content)
}

func TestController_PartialStreamIsKeptOnError(t *testing.T) {
	client := &fakeStreamClient{chunks: []string{"Partial ", "answer"}, err: errors.New("connection reset")}
	c := newTestController(t, client)

	_, err := c.Send(context.Background(), "explain")
	require.NoError(t, err)
	assert.Equal(t, domain.NewAssistantMessage("Partial answer"), lastMessage(t, c))
}

func TestController_Cancel(t *testing.T) {
	client := &fakeStreamClient{chunks: []string{"Hel", "lo"}, gate: make(chan struct{})}
	c := newTestController(t, client)

	done := sendAsync(t, c, "greet me")
	client.gate <- struct{}{}

	require.Eventually(t, func() bool {
		return lastMessage(t, c).Content == "Hel"
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateStreaming, c.State())

	ok, err := c.Send(context.Background(), "second")
	require.NoError(t, err)
	assert.False(t, ok, "a send in flight blocks further sends")

	assert.True(t, c.Cancel())
	waitDone(t, done)

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Typing())
	assert.Equal(t, domain.NewAssistantMessage("Hel"), lastMessage(t, c), "partial content is kept")
	assert.False(t, c.Cancel(), "nothing left to cancel")
}

func TestController_CancelCompleteAppendsNoReply(t *testing.T) {
	client := new(MockClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("too late", context.Canceled).Once()
	c := newTestController(t, client)

	done := sendAsync(t, c, "long question")
	require.Eventually(t, func() bool {
		return c.State() == StateSending
	}, 5*time.Second, 5*time.Millisecond)

	assert.True(t, c.Cancel())
	waitDone(t, done)

	msgs := c.sessions.Current().Messages
	require.Len(t, msgs, 2, "the user message stays without a reply")
	assert.Equal(t, domain.NewUserMessage("long question"), msgs[1])
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Typing())

	client.On("Complete", mock.Anything, mock.Anything).Return("answer", nil).Once()
	ok, err := c.Send(context.Background(), "again")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.NewAssistantMessage("answer"), lastMessage(t, c))
	client.AssertExpectations(t)
}

func TestController_ResetDuringStream(t *testing.T) {
	client := &fakeStreamClient{chunks: []string{"Hel", "lo"}, gate: make(chan struct{})}
	c := newTestController(t, client)

	done := sendAsync(t, c, "greet me")
	require.Eventually(t, func() bool {
		return c.State() == StateStreaming
	}, 5*time.Second, 5*time.Millisecond)

	c.SetInput("half typed")
	require.NoError(t, c.Reset(context.Background()))
	waitDone(t, done)

	assert.Equal(t, domain.DefaultMessages(), c.sessions.Current().Messages)
	assert.Equal(t, "", c.Input())
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Typing())

	// a fresh turn works after the reset
	client.gate = nil
	ok, err := c.Send(context.Background(), "again")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hello", lastMessage(t, c).Content)
}

func TestController_TypingIndicator(t *testing.T) {
	t.Run("shown immediately without delay", func(t *testing.T) {
		client := &fakeStreamClient{chunks: []string{"x"}, gate: make(chan struct{})}
		c := newTestController(t, client)

		done := sendAsync(t, c, "hi")
		require.Eventually(t, c.Typing, 5*time.Second, 5*time.Millisecond)
		c.Cancel()
		waitDone(t, done)
		assert.False(t, c.Typing())
	})

	t.Run("hidden until the delay elapses", func(t *testing.T) {
		client := &fakeStreamClient{chunks: []string{"x"}, gate: make(chan struct{})}
		c := newTestController(t, client, WithTypingDelay(time.Hour))

		done := sendAsync(t, c, "hi")
		require.Eventually(t, func() bool {
			return c.State() == StateStreaming
		}, 5*time.Second, 5*time.Millisecond)
		assert.False(t, c.Typing())

		c.Cancel()
		waitDone(t, done)
	})
}

func TestController_Transcript(t *testing.T) {
	client := &fakeStreamClient{chunks: []string{"**bold** and `<tag>`"}}
	c := newTestController(t, client)

	_, err := c.Send(context.Background(), "<b>hi</b> & *stars*")
	require.NoError(t, err)

	tr := c.Transcript()
	require.Len(t, tr.Messages, 3)
	assert.Equal(t, c.sessions.CurrentID(), tr.SessionID)
	assert.Equal(t, StateIdle, tr.State)

	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt; &amp; *stars*", tr.Messages[1].HTML)
	assert.Equal(t, "<p><strong>bold</strong> and <code>&lt;tag&gt;</code></p>", tr.Messages[2].HTML)
}

func TestController_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &fakeStreamClient{chunks: []string{"ok"}}
	c := newTestController(t, client)

	created := c.NewSession(ctx)
	_, err := c.Send(ctx, "Budget for the offsite")
	require.NoError(t, err)

	sess, err := c.sessions.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budget for the offsite", sess.Title)

	require.NoError(t, c.DeleteSession(ctx, created.ID))

	sessions := c.Sessions()
	require.NotEmpty(t, sessions)
	for _, s := range sessions {
		assert.NotEqual(t, "Budget for the offsite", s.Title)
	}

	// deleting everything still leaves one session
	for _, s := range sessions {
		require.NoError(t, c.DeleteSession(ctx, s.ID))
	}
	assert.Len(t, c.Sessions(), 1)

	require.NoError(t, c.RenameSession(ctx, c.sessions.CurrentID(), "Renamed"))
	assert.Equal(t, "Renamed", c.Transcript().Title)
	assert.ErrorIs(t, c.SelectSession(ctx, "missing"), domain.ErrSessionNotFound)
}

func TestState_Text(t *testing.T) {
	for state, want := range map[State]string{
		StateIdle:      "idle",
		StateSending:   "sending",
		StateStreaming: "streaming",
	} {
		got, err := state.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))

		var back State
		require.NoError(t, back.UnmarshalText(got))
		assert.Equal(t, state, back)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("paused")))
}

func TestHeuristicReply(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "I'm here. How can I help today?"},
		{"   ", "I'm here. How can I help today?"},
		{"Can you help me?", `I can answer questions, outline plans, and help draft text. Try asking "Summarize X" or "Give me steps to Y".`},
		{"what can you do", `I can answer questions, outline plans, and help draft text. Try asking "Summarize X" or "Give me steps to Y".`},
		{"Hi there", "Hey there! What would you like to work on?"},
		{"HEY", "Hey there! What would you like to work on?"},
		{"this is fine", `You said: "this is fine". I don’t have a backend connected yet, but I can still help brainstorm or outline steps.`},
		{"think about it", `You said: "think about it". I don’t have a backend connected yet, but I can still help brainstorm or outline steps.`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, HeuristicReply(tt.input))
		})
	}
}
