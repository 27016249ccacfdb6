package service

import (
	"context"
	"io"
	"sync"

	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/stretchr/testify/mock"
)

// MockKeyValueStore mocks the domain.KeyValueStore interface
type MockKeyValueStore struct {
	mock.Mock
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockKeyValueStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// MockClient mocks a non-streaming llm.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// fakeStreamClient replays a fixed chunk sequence. When gate is set, each
// chunk waits for a value on it so tests can interleave with the stream.
type fakeStreamClient struct {
	chunks    []string
	err       error // returned by Recv after the chunks
	streamErr error // returned by Stream itself
	gate      chan struct{}

	mu       sync.Mutex
	requests []llm.Request
}

func (f *fakeStreamClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	stream, err := f.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	return llm.Collect(stream)
}

func (f *fakeStreamClient) Stream(ctx context.Context, req llm.Request) (llm.ChunkStream, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &fakeStream{ctx: ctx, client: f}, nil
}

func (f *fakeStreamClient) lastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeStream struct {
	ctx    context.Context
	client *fakeStreamClient
	next   int
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.client.gate != nil {
		select {
		case <-s.client.gate:
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}
	if s.next < len(s.client.chunks) {
		chunk := s.client.chunks[s.next]
		s.next++
		return chunk, nil
	}
	if s.client.err != nil {
		return "", s.client.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}
