package llm

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Stream is a finite, single-pass sequence of text fragments.
//
// Next returns the next non-empty fragment, io.EOF once the sequence has
// ended, or an *Error if the backend failed. After End or Error every call
// returns the same terminal value.
type Stream interface {
	Next() (string, error)
	Close() error
}

type streamEvent struct {
	text string
	err  error
}

type channelStream struct {
	cancel context.CancelFunc
	events <-chan streamEvent

	mu       sync.Mutex
	terminal error
}

// emitFunc hands one fragment to the consumer. It returns false when the
// consumer has gone away and the producer should stop.
type emitFunc func(text string) bool

// newStream runs produce on its own goroutine and exposes what it emits as a
// pull-based Stream. A non-nil return from produce terminates the stream with
// that error.
func newStream(ctx context.Context, provider string, produce func(ctx context.Context, emit emitFunc) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan streamEvent, 16)

	go func() {
		defer close(ch)
		emit := func(text string) bool {
			if text == "" {
				return true
			}
			select {
			case ch <- streamEvent{text: text}:
				return true
			case <-streamCtx.Done():
				return false
			}
		}
		if err := produce(streamCtx, emit); err != nil {
			ch <- streamEvent{err: classifyTransport(provider, err)}
		}
	}()

	return &channelStream{cancel: cancel, events: ch}
}

func (s *channelStream) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal != nil {
		return "", s.terminal
	}

	event, ok := <-s.events
	if !ok {
		s.terminal = io.EOF
		return "", io.EOF
	}
	if event.err != nil {
		s.terminal = event.err
		return "", event.err
	}
	return event.text, nil
}

func (s *channelStream) Close() error {
	s.cancel()
	// Drain so the producer goroutine can exit.
	go func() {
		for range s.events {
		}
	}()
	return nil
}

// errorStream is a Stream that fails on its first Next.
type errorStream struct {
	err error
}

func newErrorStream(err error) Stream {
	return &errorStream{err: err}
}

func (s *errorStream) Next() (string, error) { return "", s.err }
func (s *errorStream) Close() error          { return nil }

// SliceStream yields the given fragments in order and then ends. Empty
// fragments are skipped. If err is non-nil it is returned after the last
// fragment instead of io.EOF.
func SliceStream(fragments []string, err error) Stream {
	return &sliceStream{fragments: fragments, err: err}
}

type sliceStream struct {
	fragments []string
	err       error
	pos       int
}

func (s *sliceStream) Next() (string, error) {
	for s.pos < len(s.fragments) {
		f := s.fragments[s.pos]
		s.pos++
		if f != "" {
			return f, nil
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *sliceStream) Close() error { return nil }

// Collect drains a stream into a single string. It stops at the first error.
func Collect(s Stream) (string, error) {
	defer s.Close()
	var sb strings.Builder
	for {
		f, err := s.Next()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(f)
	}
}
