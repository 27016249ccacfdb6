// Package httpchat talks to a chat proxy endpoint that accepts
// {"messages": [...]} and answers with the reply as a plain text body.
// The body is read incrementally so the reply can be shown while it
// arrives.
package httpchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/Rrens/smart-chat/internal/llm"
)

// Client posts conversations to a chat proxy endpoint
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a client for endpoint, e.g. http://localhost:3000/api/chat.
// A nil httpClient uses http.DefaultClient; streaming replies should not be
// cut by a client-wide timeout, cancel through the context instead.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, client: httpClient}
}

type chatRequest struct {
	Messages []llm.Turn `json:"messages"`
}

// Complete returns the whole reply body
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	stream, err := c.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	return llm.Collect(stream)
}

// Stream returns the reply body as it arrives
func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.ChunkStream, error) {
	if c.endpoint == "" {
		return nil, llm.ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{Messages: req.Turns})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &llm.UnreachableError{Provider: "chat proxy", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, llm.NewStatusError("chat proxy", resp)
	}
	return newTextStream(resp.Body), nil
}

// textStream yields the body in read-sized chunks, holding back a trailing
// partial UTF-8 sequence until the rest of it arrives.
type textStream struct {
	body    io.ReadCloser
	buf     []byte
	pending []byte
	eof     bool
}

func newTextStream(body io.ReadCloser) *textStream {
	return &textStream{body: body, buf: make([]byte, 4096)}
}

func (s *textStream) Recv() (string, error) {
	for !s.eof {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			data := append(s.pending, s.buf[:n]...)
			cut := completePrefix(data)
			s.pending = append([]byte(nil), data[cut:]...)
			if cut > 0 {
				return string(data[:cut]), nil
			}
		}
		if err == io.EOF {
			s.eof = true
			break
		}
		if err != nil {
			return "", err
		}
	}

	if len(s.pending) > 0 {
		rest := string(s.pending)
		s.pending = nil
		return rest, nil
	}
	return "", io.EOF
}

func (s *textStream) Close() error {
	return s.body.Close()
}

// completePrefix returns the length of the longest prefix of b that does
// not end inside a multi-byte UTF-8 sequence
func completePrefix(b []byte) int {
	// A rune is at most 4 bytes, so only the last 3 can be incomplete.
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax+1; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
