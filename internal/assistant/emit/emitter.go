// Package emit renders loop results for the HTTP surface, either as one JSON
// document or as a server-sent event stream.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lwhela12/the-hive-sub001/internal/assistant"
)

// Payload is the response body of a completed assistant request. The
// streaming path sends the same shape inside its metadata event.
type Payload struct {
	Response           string             `json:"response"`
	SkillsAdded        int                `json:"skillsAdded"`
	OnboardingComplete bool               `json:"onboardingComplete"`
	ContextMetadata    assistant.Metadata `json:"contextMetadata"`
}

// StreamOptions tunes how final text is replayed as deltas.
type StreamOptions struct {
	ChunkSize  int
	ChunkDelay time.Duration
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 12
	}
	if o.ChunkDelay <= 0 {
		o.ChunkDelay = 25 * time.Millisecond
	}
	return o
}

// Chunks splits s into pieces of at most size runes, preserving order and
// content exactly. Splitting on rune boundaries keeps every delta valid
// UTF-8 so the concatenated chunks reassemble the original text. An empty
// string yields no chunks.
func Chunks(s string, size int) []string {
	if size <= 0 || s == "" {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	runes := []rune(s)
	out := make([]string, 0, (len(runes)+size-1)/size)
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	return append(out, string(runes))
}

// OpenStream returns a reader producing the event sequence for a successful
// run: start, content_start, content_delta per chunk, content_done, metadata,
// done. Production runs in a goroutine; closing the reader stops it.
func OpenStream(payload Payload, opts StreamOptions) io.ReadCloser {
	opts = opts.withDefaults()
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		if err := writeEvent(pw, "start", struct{}{}); err != nil {
			return
		}
		if err := writeEvent(pw, "content_start", struct{}{}); err != nil {
			return
		}
		for _, chunk := range Chunks(payload.Response, opts.ChunkSize) {
			if err := writeEvent(pw, "content_delta", map[string]string{"text": chunk}); err != nil {
				return
			}
			if opts.ChunkDelay > 0 {
				time.Sleep(opts.ChunkDelay)
			}
		}
		if err := writeEvent(pw, "content_done", map[string]string{"fullText": payload.Response}); err != nil {
			return
		}
		if err := writeEvent(pw, "metadata", payload); err != nil {
			return
		}
		_ = writeEvent(pw, "done", struct{}{})
	}()
	return pr
}

// OpenErrorStream returns a reader producing the failure sequence: error
// followed by done. Used when the run fails before any content exists.
func OpenErrorStream(msg string) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		if err := writeEvent(pw, "error", map[string]string{"error": msg}); err != nil {
			return
		}
		_ = writeEvent(pw, "done", struct{}{})
	}()
	return pr
}

// writeEvent emits one SSE frame. A write error means the consumer has gone
// away; callers stop producing on the first one.
func writeEvent(w io.Writer, event string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
	return err
}
