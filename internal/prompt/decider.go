// Package prompt abstracts the ask-default-proceed decisions made during
// server lifecycle operations. The core calls a Decider synchronously; the
// CLI supplies an interactive terminal, unattended runs supply Auto, and
// tests supply Scripted.
package prompt

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrNonInteractive is returned when a decision has no usable default and
// nobody is available to answer.
var ErrNonInteractive = errors.New("decision requires interactive input")

// Decider answers the questions asked while resolving and running a server.
type Decider interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string, def bool) (bool, error)
	// Input asks for free text. Blank input yields def.
	Input(ctx context.Context, question, def string) (string, error)
	// Select asks for one of options and returns its index.
	Select(ctx context.Context, title string, options []string, def int) (int, error)
}

// parseBool reads a console-style yes/no answer.
func parseBool(s string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "y", "yes", "true":
		return true, nil
	case "n", "no", "false":
		return false, nil
	default:
		return false, errors.New("answer must be yes or no")
	}
}

// resolveSelection maps an answer to an option index. The answer may be the
// option text or its zero-based index; blank selects def.
func resolveSelection(answer string, options []string, def int) (int, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		if def < 0 || def >= len(options) {
			return 0, ErrNonInteractive
		}
		return def, nil
	}
	for i, o := range options {
		if strings.EqualFold(o, answer) {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 0 && n < len(options) {
		return n, nil
	}
	return 0, errors.New("answer " + strconv.Quote(answer) + " matches no option")
}
