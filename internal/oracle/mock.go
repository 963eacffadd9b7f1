package oracle

import (
	"context"
	"fmt"
)

// Reply is one scripted exchange for tests.
type Reply struct {
	Text string
	Err  error
}

// Scripted is a Channel that plays back a fixed sequence of replies and
// records every prompt it receives. It lets driver behavior be tested
// without a bridge or a live model.
type Scripted struct {
	Replies []Reply
	Prompts []string
	next    int
}

// NewScripted builds a scripted channel from plain reply texts.
func NewScripted(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.Replies = append(s.Replies, Reply{Text: t})
	}
	return s
}

func (s *Scripted) Send(_ context.Context, prompt string) (string, error) {
	s.Prompts = append(s.Prompts, prompt)
	if s.next >= len(s.Replies) {
		return "", fmt.Errorf("%w: script exhausted after %d replies", ErrUnavailable, len(s.Replies))
	}
	r := s.Replies[s.next]
	s.next++
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}
