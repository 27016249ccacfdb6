package llm

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// LineDecoder turns one line of a streamed response body into reply text.
// done=true ends the stream.
type LineDecoder func(line []byte) (chunk string, done bool, err error)

// LineStream adapts a line-oriented response body (SSE, NDJSON) into a
// ChunkStream
type LineStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	decode  LineDecoder
	done    bool
}

// NewLineStream creates a LineStream that owns body
func NewLineStream(body io.ReadCloser, decode LineDecoder) *LineStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &LineStream{body: body, scanner: scanner, decode: decode}
}

// Recv returns the next non-empty chunk or io.EOF
func (s *LineStream) Recv() (string, error) {
	for !s.done {
		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		chunk, done, err := s.decode(line)
		if err != nil {
			s.done = true
			return "", err
		}
		if done {
			s.done = true
			break
		}
		if chunk != "" {
			return chunk, nil
		}
	}
	return "", io.EOF
}

// Close releases the response body
func (s *LineStream) Close() error {
	return s.body.Close()
}

// SSEData extracts the payload of a server-sent "data:" line. Other SSE
// fields report ok=false.
func SSEData(line []byte) (payload []byte, ok bool) {
	rest, found := bytes.CutPrefix(line, []byte("data:"))
	if !found {
		return nil, false
	}
	return bytes.TrimSpace(rest), true
}

// Collect drains a stream into a single string
func Collect(stream ChunkStream) (string, error) {
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
}
