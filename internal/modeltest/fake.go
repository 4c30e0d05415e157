// Package modeltest provides scripted fakes for the underlying generative
// call, used by engine tests.
package modeltest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mercator-hq/callisto/pkg/model"
)

// Caller replays scripted contents as one-shot completion results and counts
// how many times it was invoked. Safe for concurrent use.
type Caller struct {
	mu       sync.Mutex
	calls    int
	contents []string
	err      error
}

// NewCaller creates a caller that returns the given contents in order. Once
// the script is exhausted the last content repeats.
func NewCaller(contents ...string) *Caller {
	return &Caller{contents: contents}
}

// NewFailingCaller creates a caller whose every invocation fails with err.
func NewFailingCaller(err error) *Caller {
	return &Caller{err: err}
}

// Complete implements model.CompleteFunc.
func (c *Caller) Complete(ctx context.Context, req model.Request) (*model.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if c.err != nil {
		return nil, c.err
	}
	if len(c.contents) == 0 {
		return nil, fmt.Errorf("scripted caller has no contents")
	}

	idx := c.calls - 1
	if idx >= len(c.contents) {
		idx = len(c.contents) - 1
	}
	return &model.Result{
		ID:           fmt.Sprintf("resp-%d", c.calls),
		Model:        req.Model,
		Content:      c.contents[idx],
		FinishReason: model.FinishReasonStop,
		Created:      time.Now().Unix(),
	}, nil
}

// Calls returns how many times Complete was invoked.
func (c *Caller) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Streamer produces scripted chunk streams and counts how many chunks were
// actually sent before the consumer's context was cancelled.
type Streamer struct {
	mu     sync.Mutex
	sent   int
	deltas []string
}

// NewStreamer creates a streamer that emits one chunk per delta.
func NewStreamer(deltas ...string) *Streamer {
	return &Streamer{deltas: deltas}
}

// Stream implements model.StreamFunc. The producer stops as soon as ctx is
// cancelled and always closes the channel.
func (s *Streamer) Stream(ctx context.Context, req model.Request) (<-chan model.StreamChunk, error) {
	ch := make(chan model.StreamChunk)
	go func() {
		defer close(ch)
		for i, delta := range s.deltas {
			chunk := model.StreamChunk{
				ID:    "stream-1",
				Model: req.Model,
				Delta: delta,
			}
			if i == len(s.deltas)-1 {
				chunk.FinishReason = model.FinishReasonStop
			}
			select {
			case ch <- chunk:
				s.mu.Lock()
				s.sent++
				s.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Sent returns how many chunks the producer managed to send.
func (s *Streamer) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}
