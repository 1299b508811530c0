package prompt

import (
	"context"
	"log/slog"
)

// Auto answers every question with its default, for unattended runs.
// With AssumeYes set every confirmation is approved.
type Auto struct {
	AssumeYes bool
	Logger    *slog.Logger
}

// Confirm implements Decider.
func (a *Auto) Confirm(_ context.Context, question string, def bool) (bool, error) {
	answer := def || a.AssumeYes
	a.log("confirm", question, answer)
	return answer, nil
}

// Input implements Decider. An empty default cannot be answered.
func (a *Auto) Input(_ context.Context, question, def string) (string, error) {
	if def == "" {
		return "", ErrNonInteractive
	}
	a.log("input", question, def)
	return def, nil
}

// Select implements Decider.
func (a *Auto) Select(_ context.Context, title string, options []string, def int) (int, error) {
	if def < 0 || def >= len(options) {
		return 0, ErrNonInteractive
	}
	a.log("select", title, options[def])
	return def, nil
}

func (a *Auto) log(kind, question string, answer any) {
	if a.Logger == nil {
		return
	}
	a.Logger.Debug("auto answered", "kind", kind, "question", question, "answer", answer)
}
