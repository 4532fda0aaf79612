package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spherical/pdf-diff/internal/domain"
)

const (
	ssePrefix   = "data:"
	sseDone     = "[DONE]"
	maxSSELine  = 1 << 20
	initSSELine = 64 << 10
)

// StreamParser reads chat completion deltas from a server-sent event body.
type StreamParser struct {
	lines *bufio.Scanner
}

func NewStreamParser(r io.Reader) *StreamParser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, initSSELine), maxSSELine)
	return &StreamParser{lines: sc}
}

// next returns the next non-empty delta. done is true at [DONE], at a finish
// reason or at end of body.
func (p *StreamParser) next() (text string, done bool, err error) {
	for p.lines.Scan() {
		payload, ok := strings.CutPrefix(p.lines.Text(), ssePrefix)
		if !ok {
			continue // comments, event names and blank separators
		}
		payload = strings.TrimSpace(payload)
		if payload == sseDone {
			return "", true, nil
		}

		var resp Response
		if json.Unmarshal([]byte(payload), &resp) != nil {
			continue
		}
		if resp.Error != nil {
			return "", true, domain.APIError(fmt.Sprintf("stream error %v: %s", resp.Error.Code, resp.Error.Message), nil)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		c := resp.Choices[0]
		text = c.Delta.Content
		if text == "" {
			text = c.Message.Content
		}
		if text != "" || c.FinishReason != "" {
			return text, c.FinishReason != "", nil
		}
	}
	return "", true, p.lines.Err()
}

// ParseAll forwards every delta to resultCh until the stream ends.
func (p *StreamParser) ParseAll(ctx context.Context, resultCh chan<- string) error {
	for {
		text, done, err := p.next()
		if err != nil {
			return err
		}
		if text != "" {
			select {
			case resultCh <- text:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if done {
			return nil
		}
	}
}
