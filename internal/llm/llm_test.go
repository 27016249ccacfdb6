package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       string
	configured bool
}

func (p fakeProvider) Name() string              { return p.name }
func (p fakeProvider) AvailableModels() []string { return []string{p.name + "-model"} }
func (p fakeProvider) DefaultModel() string      { return p.name + "-model" }
func (p fakeProvider) IsConfigured() bool        { return p.configured }

func (p fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	return "reply from " + p.name, nil
}

type recordingClient struct {
	got []Request
}

func (c *recordingClient) Complete(ctx context.Context, req Request) (string, error) {
	c.got = append(c.got, req)
	return "ok", nil
}

type recordingStreamClient struct {
	recordingClient
}

func (c *recordingStreamClient) Stream(ctx context.Context, req Request) (ChunkStream, error) {
	c.got = append(c.got, req)
	return NewLineStream(io.NopCloser(strings.NewReader("a\nb\n")), func(line []byte) (string, bool, error) {
		return string(line), false, nil
	}), nil
}

func TestPrepareTurns(t *testing.T) {
	tests := []struct {
		name   string
		turns  []Turn
		prompt string
		want   []Turn
	}{
		{
			name:   "prompt is prepended",
			turns:  []Turn{{Role: "user", Content: "  hi  "}},
			prompt: "be brief",
			want:   []Turn{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}},
		},
		{
			name:   "existing system turn is kept",
			turns:  []Turn{{Role: "system", Content: "custom"}, {Role: "user", Content: "hi"}},
			prompt: "be brief",
			want:   []Turn{{Role: "system", Content: "custom"}, {Role: "user", Content: "hi"}},
		},
		{
			name: "empty turns and unknown roles are dropped",
			turns: []Turn{
				{Role: "user", Content: "   "},
				{Role: "tool", Content: "x"},
				{Role: "assistant", Content: "hello"},
			},
			want: []Turn{{Role: "assistant", Content: "hello"}},
		},
		{
			name: "nothing left",
			want: []Turn{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrepareTurns(tt.turns, tt.prompt))
		})
	}
}

func TestWithSystemPrompt(t *testing.T) {
	ctx := context.Background()
	req := Request{Turns: []Turn{{Role: "user", Content: " q "}}}

	plain := &recordingClient{}
	c := WithSystemPrompt(plain, "sys")
	_, isStreaming := c.(StreamingClient)
	assert.False(t, isStreaming)

	_, err := c.Complete(ctx, req)
	require.NoError(t, err)
	require.Len(t, plain.got, 1)
	assert.Equal(t, []Turn{{Role: "system", Content: "sys"}, {Role: "user", Content: "q"}}, plain.got[0].Turns)

	streaming := &recordingStreamClient{}
	sc, ok := WithSystemPrompt(streaming, "sys").(StreamingClient)
	require.True(t, ok, "streaming capability is preserved")

	stream, err := sc.Stream(ctx, req)
	require.NoError(t, err)
	reply, err := Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "ab", reply)
	assert.Equal(t, "system", streaming.got[0].Turns[0].Role)

	fallback := &recordingClient{}
	_, err = WithSystemPrompt(fallback, "  ").Complete(ctx, req)
	require.NoError(t, err)
	require.Len(t, fallback.got, 1)
	assert.Equal(t, []Turn{{Role: "system", Content: DefaultSystemPrompt}, {Role: "user", Content: "q"}}, fallback.got[0].Turns)
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRouter(t *testing.T) {
	r := NewRouter("alpha")
	r.RegisterProvider(fakeProvider{name: "alpha", configured: true})
	r.RegisterProvider(fakeProvider{name: "beta", configured: false})
	r.RegisterFactory("gamma", func() Provider { return fakeProvider{name: "gamma", configured: true} })

	p, err := r.GetProvider("")
	require.NoError(t, err)
	assert.Equal(t, "alpha", p.Name())

	_, err = r.GetProvider("beta")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = r.GetProvider("missing")
	assert.ErrorIs(t, err, ErrNotConfigured)

	p, err = r.GetProvider("gamma")
	require.NoError(t, err)
	assert.Equal(t, "gamma", p.Name())

	assert.Equal(t, []string{"alpha"}, r.ListProviders())
	assert.Equal(t, "alpha", r.DefaultProvider())

	infos := r.GetProvidersInfo()
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.True(t, infos[0].Default)
	assert.False(t, infos[1].Configured)
	assert.False(t, infos[0].Streaming)
}

func TestLineStream(t *testing.T) {
	body := "data: one\n\n: comment\ndata: two\ndata: [DONE]\ndata: ignored\n"
	decode := func(line []byte) (string, bool, error) {
		data, ok := SSEData(line)
		if !ok {
			return "", false, nil
		}
		if string(data) == "[DONE]" {
			return "", true, nil
		}
		return string(data), false, nil
	}

	stream := NewLineStream(io.NopCloser(strings.NewReader(body)), decode)
	reply, err := Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "onetwo", reply)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err, "stream stays finished")
}

func TestLineStream_DecodeError(t *testing.T) {
	boom := errors.New("bad chunk")
	calls := 0
	stream := NewLineStream(io.NopCloser(strings.NewReader("ok\nbad\nnever\n")), func(line []byte) (string, bool, error) {
		calls++
		if string(line) == "bad" {
			return "", false, boom
		}
		return string(line), false, nil
	})

	reply, err := Collect(stream)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "ok", reply, "content before the error is returned")
	assert.Equal(t, 2, calls)
}

func TestSSEData(t *testing.T) {
	data, ok := SSEData([]byte("data:  {\"x\":1} "))
	require.True(t, ok)
	assert.Equal(t, `{"x":1}`, string(data))

	_, ok = SSEData([]byte("event: message"))
	assert.False(t, ok)
}

func TestStatusError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       io.NopCloser(strings.NewReader("  rate limited \n")),
	}
	err := NewStatusError("azure", resp)
	assert.Equal(t, "azure returned status 429: rate limited", err.Error())

	wrapped := &UnreachableError{Provider: "x", Err: err}
	code, ok := StatusCode(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, code)

	_, ok = StatusCode(errors.New("plain"))
	assert.False(t, ok)

	assert.Equal(t, "ollama returned status 500", (&StatusError{Provider: "ollama", StatusCode: 500}).Error())
}
