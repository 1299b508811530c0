package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// Terminal asks questions on the controlling terminal using huh forms.
type Terminal struct {
	// Accessible renders plain line prompts, for screen readers and dumb terminals.
	Accessible bool
	Theme      *huh.Theme
}

// NewTerminal creates a Terminal with the Charm theme.
func NewTerminal(accessible bool) *Terminal {
	return &Terminal{Accessible: accessible, Theme: huh.ThemeCharm()}
}

func (t *Terminal) run(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithAccessible(t.Accessible).
		WithShowHelp(!t.Accessible)
	if t.Theme != nil {
		form = form.WithTheme(t.Theme)
	}
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return fmt.Errorf("prompt cancelled: %w", context.Canceled)
		}
		return err
	}
	return nil
}

// Confirm implements Decider.
func (t *Terminal) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	answer := def
	field := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&answer)
	if err := t.run(ctx, field); err != nil {
		return false, err
	}
	return answer, nil
}

// Input implements Decider.
func (t *Terminal) Input(ctx context.Context, question, def string) (string, error) {
	var answer string
	field := huh.NewInput().
		Title(question).
		Placeholder(def).
		Value(&answer)
	if err := t.run(ctx, field); err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return def, nil
	}
	return strings.TrimSpace(answer), nil
}

// Select implements Decider.
func (t *Terminal) Select(ctx context.Context, title string, options []string, def int) (int, error) {
	if len(options) == 0 {
		return 0, errors.New("nothing to select from")
	}
	choice := def
	if choice < 0 || choice >= len(options) {
		choice = 0
	}

	opts := make([]huh.Option[int], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, i)
	}
	field := huh.NewSelect[int]().
		Title(title).
		Options(opts...).
		Value(&choice)
	if err := t.run(ctx, field); err != nil {
		return 0, err
	}
	return choice, nil
}
