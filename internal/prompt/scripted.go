package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrScriptExhausted is returned when a Scripted decider runs out of answers.
var ErrScriptExhausted = errors.New("scripted answers exhausted")

// Scripted replays console-style answers in order, one per question. A blank
// answer takes the default. It records every question it is asked.
type Scripted struct {
	mu      sync.Mutex
	answers []string
	asked   []string
}

// NewScripted creates a Scripted decider from answers.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

// Asked returns the questions asked so far.
func (s *Scripted) Asked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.asked...)
}

// Remaining returns the number of unused answers.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

func (s *Scripted) next(question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, question)
	if len(s.answers) == 0 {
		return "", fmt.Errorf("%w at %q", ErrScriptExhausted, question)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

// Confirm implements Decider.
func (s *Scripted) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	a, err := s.next(question)
	if err != nil {
		return false, err
	}
	return parseBool(a, def)
}

// Input implements Decider.
func (s *Scripted) Input(ctx context.Context, question, def string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a, err := s.next(question)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(a) == "" {
		return def, nil
	}
	return strings.TrimSpace(a), nil
}

// Select implements Decider.
func (s *Scripted) Select(ctx context.Context, title string, options []string, def int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a, err := s.next(title)
	if err != nil {
		return 0, err
	}
	return resolveSelection(a, options, def)
}
