package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/smart-chat/internal/domain"
	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/Rrens/smart-chat/internal/markdown"
	"github.com/rs/zerolog/log"
)

// State is the request lifecycle of a Controller
type State int

const (
	StateIdle State = iota
	StateSending
	// StateStreaming is Sending with a placeholder reply receiving chunks
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "sending":
		*s = StateSending
	case "streaming":
		*s = StateStreaming
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// RenderedMessage is a message with its display HTML
type RenderedMessage struct {
	Role    domain.MessageRole `json:"role"`
	Content string             `json:"content"`
	HTML    string             `json:"html"`
}

// Transcript is a view of the current session for presentation
type Transcript struct {
	SessionID string            `json:"session_id"`
	Title     string            `json:"title"`
	Messages  []RenderedMessage `json:"messages"`
	State     State             `json:"state"`
	Typing    bool              `json:"typing"`
	Input     string            `json:"input"`
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithGenerationOptions sets the options sent with every request
func WithGenerationOptions(opts llm.Options) ControllerOption {
	return func(c *Controller) {
		c.options = opts
	}
}

// WithTypingDelay delays the typing indicator after a send. Zero shows it
// immediately.
func WithTypingDelay(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.typingDelay = d
	}
}

// Controller drives the exchange between the user, the completion client
// and the session store. At most one turn is in flight; every write a turn
// makes is tagged with its generation so writes that land after Cancel or
// Reset are dropped.
//
// Lock order is Controller.mu then SessionService.mu.
type Controller struct {
	sessions    *SessionService
	client      llm.Client
	options     llm.Options
	typingDelay time.Duration

	mu          sync.Mutex
	state       State
	typing      bool
	input       string
	turn        uint64
	cancel      context.CancelFunc
	typingTimer *time.Timer
}

// NewController creates a controller over an already loaded session
// service. A nil client behaves as an unconfigured backend.
func NewController(sessions *SessionService, client llm.Client, opts ...ControllerOption) *Controller {
	if client == nil {
		client = llm.Unavailable{}
	}
	c := &Controller{
		sessions: sessions,
		client:   client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send submits text as a user turn and blocks until the reply is complete,
// cancelled or replaced by the local fallback. It returns false without
// doing anything when text is blank or a turn is already in flight.
func (c *Controller) Send(ctx context.Context, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}

	// Store writes outlive the request so an abort never loses history
	storeCtx := context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return false, nil
	}

	sessionID := c.sessions.CurrentID()
	if err := c.sessions.AppendMessage(storeCtx, sessionID, domain.NewUserMessage(text)); err != nil {
		c.mu.Unlock()
		return false, err
	}
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		c.mu.Unlock()
		return false, err
	}

	c.turn++
	turn := c.turn
	turnCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateSending
	c.input = ""
	c.startTypingLocked(turn)
	c.mu.Unlock()

	defer cancel()

	ex := exchange{
		c:         c,
		ctx:       turnCtx,
		storeCtx:  storeCtx,
		turn:      turn,
		sessionID: sessionID,
		text:      text,
	}
	req := llm.Request{Turns: toTurns(sess.Messages), Options: c.options}

	if sc, ok := c.client.(llm.StreamingClient); ok {
		ex.stream(sc, req)
	} else {
		ex.complete(req)
	}

	c.finish(turn)
	return true, nil
}

// Cancel aborts the in-flight turn. Streamed content received so far stays
// in the session. It reports whether a turn was in flight.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle {
		return false
	}
	c.abortLocked()
	return true
}

// Reset aborts any in-flight turn and puts the current session back to the
// greeting.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		c.abortLocked()
	}
	c.input = ""
	c.stopTypingLocked()
	return c.sessions.ResetSession(ctx, c.sessions.CurrentID())
}

func (c *Controller) abortLocked() {
	c.turn++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateIdle
	c.stopTypingLocked()
}

// finish returns to Idle unless the turn was already superseded
func (c *Controller) finish(turn uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.turn != turn {
		return
	}
	c.cancel = nil
	c.state = StateIdle
	c.stopTypingLocked()
}

// apply runs fn under the controller lock if turn is still current
func (c *Controller) apply(turn uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.turn != turn {
		return false
	}
	fn()
	return true
}

func (c *Controller) startTypingLocked(turn uint64) {
	if c.typingDelay <= 0 {
		c.typing = true
		return
	}
	c.typingTimer = time.AfterFunc(c.typingDelay, func() {
		c.apply(turn, func() {
			if c.state != StateIdle {
				c.typing = true
			}
		})
	})
}

func (c *Controller) stopTypingLocked() {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.typing = false
}

// State returns the current request state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Typing reports whether the typing indicator is visible
func (c *Controller) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// SetInput stores the draft text
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// Input returns the draft text
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Transcript renders the current session. Assistant content goes through
// the markdown renderer; everything else is shown as literal text.
func (c *Controller) Transcript() Transcript {
	c.mu.Lock()
	state, typing, input := c.state, c.typing, c.input
	c.mu.Unlock()

	sess := c.sessions.Current()
	msgs := make([]RenderedMessage, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		msgs = append(msgs, RenderedMessage{
			Role:    m.Role,
			Content: m.Content,
			HTML:    renderMessage(m),
		})
	}

	return Transcript{
		SessionID: sess.ID,
		Title:     sess.Title,
		Messages:  msgs,
		State:     state,
		Typing:    typing,
		Input:     input,
	}
}

func renderMessage(m domain.Message) string {
	if m.Role == domain.RoleAssistant {
		return markdown.Render(m.Content)
	}
	return markdown.Escape(m.Content)
}

// Sessions returns the session list
func (c *Controller) Sessions() []domain.Session {
	return c.sessions.Sessions()
}

// CurrentSessionID returns the id of the session new turns go to
func (c *Controller) CurrentSessionID() string {
	return c.sessions.CurrentID()
}

// NewSession creates a session and makes it current
func (c *Controller) NewSession(ctx context.Context) domain.Session {
	return c.sessions.CreateSession(ctx)
}

func (c *Controller) SelectSession(ctx context.Context, id string) error {
	return c.sessions.Select(ctx, id)
}

func (c *Controller) RenameSession(ctx context.Context, id, title string) error {
	return c.sessions.RenameSession(ctx, id, title)
}

func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	return c.sessions.DeleteSession(ctx, id)
}

// exchange carries one turn from request to reply
type exchange struct {
	c         *Controller
	ctx       context.Context
	storeCtx  context.Context
	turn      uint64
	sessionID string
	text      string
}

func (e exchange) aborted() bool {
	return e.ctx.Err() != nil
}

func (e exchange) complete(req llm.Request) {
	reply, err := e.c.client.Complete(e.ctx, req)
	if e.aborted() {
		return
	}
	if err != nil {
		logClientError(err, e.sessionID)
		reply = HeuristicReply(e.text)
	} else if strings.TrimSpace(reply) == "" {
		reply = HeuristicReply(e.text)
	}
	e.appendReply(reply)
}

func (e exchange) stream(sc llm.StreamingClient, req llm.Request) {
	stream, err := sc.Stream(e.ctx, req)
	if e.aborted() {
		if err == nil {
			stream.Close()
		}
		return
	}
	if err != nil {
		logClientError(err, e.sessionID)
		e.appendReply(HeuristicReply(e.text))
		return
	}
	defer stream.Close()

	// Placeholder reply rebuilt from the cumulative buffer on every chunk
	placed := e.c.apply(e.turn, func() {
		e.c.state = StateStreaming
		e.write(e.c.sessions.AppendMessage(e.storeCtx, e.sessionID, domain.NewAssistantMessage("")))
	})
	if !placed {
		return
	}

	var buf strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if e.aborted() {
				return
			}
			logClientError(err, e.sessionID)
			if buf.Len() == 0 {
				e.replaceReply(HeuristicReply(e.text))
			}
			return
		}
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)
		if !e.replaceReply(buf.String()) {
			return
		}
	}

	if strings.TrimSpace(buf.String()) == "" {
		e.replaceReply(HeuristicReply(e.text))
	}
}

func (e exchange) appendReply(content string) bool {
	return e.c.apply(e.turn, func() {
		e.write(e.c.sessions.AppendMessage(e.storeCtx, e.sessionID, domain.NewAssistantMessage(content)))
	})
}

func (e exchange) replaceReply(content string) bool {
	return e.c.apply(e.turn, func() {
		e.write(e.c.sessions.ReplaceLastAssistantMessage(e.storeCtx, e.sessionID, content))
	})
}

// write logs a session write that could not land, e.g. because the
// session was deleted mid-turn
func (e exchange) write(err error) {
	if err != nil {
		log.Debug().Err(err).Str("session_id", e.sessionID).Msg("dropping reply write")
	}
}

func logClientError(err error, sessionID string) {
	if errors.Is(err, llm.ErrNotConfigured) {
		log.Info().Str("session_id", sessionID).Msg("completion backend not configured, using local reply")
		return
	}

	event := log.Warn().Err(err).Str("session_id", sessionID)
	var statusErr *llm.StatusError
	var unreachable *llm.UnreachableError
	switch {
	case errors.As(err, &statusErr):
		event = event.Str("provider", statusErr.Provider).Int("status", statusErr.StatusCode)
	case errors.As(err, &unreachable):
		event = event.Str("provider", unreachable.Provider)
	}
	event.Msg("completion failed, using local reply")
}

func toTurns(msgs []domain.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, llm.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}
