package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Rrens/smart-chat/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	legacyHistoryKey = "history"
	sessionsKey      = "sessions"
)

// SessionService owns the ordered session collection and the current
// session id. Every mutation is written through to the key-value store as
// a full overwrite of the collection. Writes are best-effort: a failing
// store is logged and ignored, the in-memory collection stays
// authoritative. Concurrent writers on the same key resolve as
// last-writer-wins.
type SessionService struct {
	mu       sync.Mutex
	store    domain.KeyValueStore
	prefix   string
	sessions []domain.Session
	current  string
	// unread is set while the stored collection could not be read
	unread bool
}

// NewSessionService creates a session service. keyPrefix scopes both
// persisted keys, e.g. "smartchat:" gives "smartchat:sessions".
// The collection starts with a single default session until LoadAll runs.
func NewSessionService(store domain.KeyValueStore, keyPrefix string) *SessionService {
	s := domain.NewSession()
	return &SessionService{
		store:    store,
		prefix:   keyPrefix,
		sessions: []domain.Session{s},
		current:  s.ID,
	}
}

// SessionsKey returns the store key holding the session collection
func (s *SessionService) SessionsKey() string {
	return s.prefix + sessionsKey
}

// LegacyHistoryKey returns the store key of the pre-session flat history
func (s *SessionService) LegacyHistoryKey() string {
	return s.prefix + legacyHistoryKey
}

// LoadAll reads the collection from the store. It falls back to migrating
// the legacy flat history and then to a single default session. The first
// session becomes current. When the store cannot be read the default
// session is used and writes are held back until a read succeeds, so the
// stored collection is never overwritten by one it was not loaded from.
func (s *SessionService) LoadAll(ctx context.Context) []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unread = false
	sessions, err := s.loadCollection(ctx)
	if err != nil {
		s.unread = true
	}
	if len(sessions) == 0 && !s.unread {
		migrated, ok, err := s.migrateLegacy(ctx)
		switch {
		case err != nil:
			s.unread = true
		case ok:
			s.sessions = []domain.Session{migrated}
			s.current = migrated.ID
			s.persistLocked(ctx)
			log.Info().Str("session_id", migrated.ID).Int("messages", len(migrated.Messages)).
				Msg("migrated legacy chat history")
			return s.snapshotLocked()
		}
	}
	if len(sessions) == 0 {
		sessions = []domain.Session{domain.NewSession()}
	}
	if s.unread {
		log.Warn().Str("key", s.SessionsKey()).Msg("session store unreadable, holding back writes")
	}

	s.sessions = sessions
	s.current = sessions[0].ID
	return s.snapshotLocked()
}

// loadCollection returns the stored sessions. A missing or unusable
// collection yields no sessions and no error.
func (s *SessionService) loadCollection(ctx context.Context) ([]domain.Session, error) {
	raw, found, err := s.read(ctx, s.SessionsKey())
	if err != nil || !found {
		return nil, err
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Warn().Err(err).Str("key", s.SessionsKey()).Msg("stored sessions are not a list, ignoring")
		return nil, nil
	}

	seen := make(map[string]bool, len(entries))
	sessions := make([]domain.Session, 0, len(entries))
	for i, entry := range entries {
		sess, ok := decodeSession(entry)
		if !ok || seen[sess.ID] {
			log.Warn().Int("index", i).Msg("dropping malformed stored session")
			continue
		}
		seen[sess.ID] = true
		applyAutoTitle(&sess)
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *SessionService) migrateLegacy(ctx context.Context) (domain.Session, bool, error) {
	raw, found, err := s.read(ctx, s.LegacyHistoryKey())
	if err != nil || !found {
		return domain.Session{}, false, err
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Warn().Err(err).Str("key", s.LegacyHistoryKey()).Msg("legacy history is not a list, ignoring")
		return domain.Session{}, false, nil
	}

	msgs := decodeMessages(entries)
	if len(msgs) == 0 {
		return domain.Session{}, false, nil
	}

	sess := domain.NewSession()
	sess.Title = domain.TitleConversation
	sess.Messages = msgs
	applyAutoTitle(&sess)
	return sess, true, nil
}

// recoverLocked retries the read that failed in LoadAll. Stored sessions
// are put back ahead of the ones created since. Untouched placeholder
// sessions other than the current one are dropped.
func (s *SessionService) recoverLocked(ctx context.Context) bool {
	stored, err := s.loadCollection(ctx)
	if err == nil && len(stored) == 0 {
		var migrated domain.Session
		var ok bool
		migrated, ok, err = s.migrateLegacy(ctx)
		if ok {
			stored = []domain.Session{migrated}
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("key", s.SessionsKey()).Msg("session store still unreadable, write held back")
		return false
	}

	seen := make(map[string]bool, len(stored))
	for _, sess := range stored {
		seen[sess.ID] = true
	}
	for _, sess := range s.sessions {
		if seen[sess.ID] {
			continue
		}
		if _, used := sess.FirstUserMessage(); !used && sess.Title == domain.TitleNewChat && sess.ID != s.current {
			continue
		}
		stored = append(stored, sess)
	}

	s.sessions = stored
	s.unread = false
	log.Info().Int("sessions", len(stored)).Msg("session store readable again, merged stored sessions")
	return true
}

func (s *SessionService) read(ctx context.Context, key string) (string, bool, error) {
	if s.store == nil {
		return "", false, nil
	}
	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to read from session store")
		return "", false, err
	}
	return raw, found, nil
}

// Persist writes the full collection to the store. Failures are logged and
// swallowed.
func (s *SessionService) Persist(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked(ctx)
}

func (s *SessionService) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	if s.unread && !s.recoverLocked(ctx) {
		return
	}
	data, err := json.Marshal(s.sessions)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal sessions")
		return
	}
	if err := s.store.Set(ctx, s.SessionsKey(), string(data)); err != nil {
		log.Warn().Err(err).Str("key", s.SessionsKey()).Msg("failed to persist sessions")
	}
}

// Sessions returns a copy of the ordered collection
func (s *SessionService) Sessions() []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Current returns a copy of the current session
func (s *SessionService) Current() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(s.current)
	if idx < 0 {
		// Unreachable while the invariants hold; keep the caller safe anyway.
		return s.sessions[0].Clone()
	}
	return s.sessions[idx].Clone()
}

// CurrentID returns the id of the current session
func (s *SessionService) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Get returns a copy of the session with the given id
func (s *SessionService) Get(id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s.sessions[idx].Clone(), nil
}

// CreateSession appends a greeting-only session and makes it current
func (s *SessionService) CreateSession(ctx context.Context) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := domain.NewSession()
	s.sessions = append(s.sessions, sess)
	s.current = sess.ID
	s.persistLocked(ctx)
	return sess.Clone()
}

// Select makes the session with the given id current
func (s *SessionService) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return domain.ErrSessionNotFound
	}
	s.current = id
	return nil
}

// DeleteSession removes a session. If it was current, the first remaining
// session becomes current; an emptied collection gets a fresh default
// session.
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.ErrSessionNotFound
	}

	s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)
	if len(s.sessions) == 0 {
		s.sessions = []domain.Session{domain.NewSession()}
	}
	if s.current == id {
		s.current = s.sessions[0].ID
	}
	s.persistLocked(ctx)
	return nil
}

// RenameSession sets a caller-assigned title, cut to MaxTitleLength
// characters. Blank input leaves the title unchanged.
func (s *SessionService) RenameSession(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.ErrSessionNotFound
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	s.sessions[idx].Title = domain.Truncate(title, domain.MaxTitleLength)
	s.persistLocked(ctx)
	return nil
}

// AppendMessage appends a message to a session
func (s *SessionService) AppendMessage(ctx context.Context, id string, msg domain.Message) error {
	return s.mutate(ctx, id, func(sess *domain.Session) error {
		sess.Messages = append(sess.Messages, msg)
		return nil
	})
}

// ReplaceLastAssistantMessage rewrites the content of the trailing
// assistant message, used while a streamed reply is being rebuilt.
func (s *SessionService) ReplaceLastAssistantMessage(ctx context.Context, id, content string) error {
	return s.mutate(ctx, id, func(sess *domain.Session) error {
		last := len(sess.Messages) - 1
		if last < 0 || sess.Messages[last].Role != domain.RoleAssistant {
			return domain.ErrNoAssistantMessage
		}
		sess.Messages[last].Content = content
		return nil
	})
}

// ResetSession replaces the messages of a session with the greeting
func (s *SessionService) ResetSession(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(sess *domain.Session) error {
		sess.Messages = domain.DefaultMessages()
		return nil
	})
}

func (s *SessionService) mutate(ctx context.Context, id string, fn func(*domain.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.ErrSessionNotFound
	}

	sess := &s.sessions[idx]
	if err := fn(sess); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	applyAutoTitle(sess)
	s.persistLocked(ctx)
	return nil
}

func (s *SessionService) indexLocked(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *SessionService) snapshotLocked() []domain.Session {
	out := make([]domain.Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// applyAutoTitle derives the title from the first user message while the
// title is still a placeholder.
func applyAutoTitle(sess *domain.Session) {
	if !sess.HasPlaceholderTitle() {
		return
	}
	if content, ok := sess.FirstUserMessage(); ok {
		if title := domain.DeriveTitle(content); title != "" {
			sess.Title = title
			return
		}
	}
	if sess.Title == "" {
		sess.Title = domain.TitleNewChat
	}
}

type storedSession struct {
	ID       json.RawMessage `json:"id"`
	Title    json.RawMessage `json:"title"`
	Messages json.RawMessage `json:"messages"`
}

type storedMessage struct {
	Role    json.RawMessage `json:"role"`
	Content json.RawMessage `json:"content"`
}

// decodeSession accepts an entry with a string id and a messages list.
// Invalid messages are dropped; a session left without messages gets the
// greeting back.
func decodeSession(raw json.RawMessage) (domain.Session, bool) {
	var entry storedSession
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.Session{}, false
	}

	id, ok := decodeString(entry.ID)
	if !ok || strings.TrimSpace(id) == "" {
		return domain.Session{}, false
	}

	var rawMessages []json.RawMessage
	if entry.Messages == nil || json.Unmarshal(entry.Messages, &rawMessages) != nil || rawMessages == nil {
		return domain.Session{}, false
	}

	title, _ := decodeString(entry.Title)

	msgs := decodeMessages(rawMessages)
	if len(msgs) == 0 {
		msgs = domain.DefaultMessages()
	}

	return domain.Session{ID: id, Title: title, Messages: msgs}, true
}

func decodeMessages(entries []json.RawMessage) []domain.Message {
	msgs := make([]domain.Message, 0, len(entries))
	for _, raw := range entries {
		if msg, ok := decodeMessage(raw); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func decodeMessage(raw json.RawMessage) (domain.Message, bool) {
	var entry storedMessage
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.Message{}, false
	}

	role, ok := decodeString(entry.Role)
	if !ok {
		return domain.Message{}, false
	}
	content, ok := decodeString(entry.Content)
	if !ok {
		return domain.Message{}, false
	}

	r := domain.MessageRole(role)
	if !r.Valid() {
		return domain.Message{}, false
	}
	return domain.Message{Role: r, Content: content}, true
}

// decodeString accepts only a JSON string; absent, null and other types
// are rejected.
func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil || string(raw) == "null" {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}
