package prompt

import (
	"context"
	"errors"
	"testing"
)

var (
	_ Decider = (*Terminal)(nil)
	_ Decider = (*Auto)(nil)
	_ Decider = (*Scripted)(nil)
)

func TestScriptedConfirm(t *testing.T) {
	tests := []struct {
		answer  string
		def     bool
		want    bool
		wantErr bool
	}{
		{"", true, true, false},
		{"", false, false, false},
		{"y", false, true, false},
		{"No", true, false, false},
		{"maybe", true, false, true},
	}

	for _, tt := range tests {
		s := NewScripted(tt.answer)
		got, err := s.Confirm(context.Background(), "continue?", tt.def)
		if (err != nil) != tt.wantErr {
			t.Errorf("Confirm(%q) error = %v, wantErr %v", tt.answer, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Confirm(%q, %v) = %v, want %v", tt.answer, tt.def, got, tt.want)
		}
	}
}

func TestScriptedInputAndSelect(t *testing.T) {
	s := NewScripted("", "  survival  ", "", "restore", "2", "nether")
	ctx := context.Background()

	if got, _ := s.Input(ctx, "name?", "world"); got != "world" {
		t.Errorf("blank input = %q, want default", got)
	}
	if got, _ := s.Input(ctx, "name?", "world"); got != "survival" {
		t.Errorf("input = %q, want trimmed answer", got)
	}

	options := []string{"backup", "restore", "default", "legacy"}
	if got, _ := s.Select(ctx, "type?", options, 2); got != 2 {
		t.Errorf("blank select = %d, want default 2", got)
	}
	if got, _ := s.Select(ctx, "type?", options, 2); got != 1 {
		t.Errorf("select by name = %d, want 1", got)
	}
	if got, _ := s.Select(ctx, "type?", options, 0); got != 2 {
		t.Errorf("select by index = %d, want 2", got)
	}
	if _, err := s.Select(ctx, "type?", options, 0); err == nil {
		t.Error("expected unknown option to fail")
	}

	if len(s.Asked()) != 6 {
		t.Errorf("asked %d questions, want 6", len(s.Asked()))
	}
	if _, err := s.Confirm(ctx, "more?", true); !errors.Is(err, ErrScriptExhausted) {
		t.Errorf("error = %v, want ErrScriptExhausted", err)
	}
}

func TestScriptedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScripted("y")
	if _, err := s.Confirm(ctx, "q", true); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if s.Remaining() != 1 {
		t.Error("cancelled call consumed an answer")
	}
}

func TestAuto(t *testing.T) {
	ctx := context.Background()

	a := &Auto{}
	if got, _ := a.Confirm(ctx, "download?", false); got {
		t.Error("Auto should keep a false default")
	}
	if got, _ := (&Auto{AssumeYes: true}).Confirm(ctx, "download?", false); !got {
		t.Error("AssumeYes should approve")
	}
	if got, _ := a.Input(ctx, "motd?", "A Minecraft Server"); got != "A Minecraft Server" {
		t.Errorf("Input = %q", got)
	}
	if _, err := a.Input(ctx, "version?", ""); !errors.Is(err, ErrNonInteractive) {
		t.Errorf("error = %v, want ErrNonInteractive", err)
	}
	if got, _ := a.Select(ctx, "type?", []string{"a", "b"}, 1); got != 1 {
		t.Errorf("Select = %d, want 1", got)
	}
	if _, err := a.Select(ctx, "type?", nil, 0); !errors.Is(err, ErrNonInteractive) {
		t.Errorf("error = %v, want ErrNonInteractive", err)
	}
}
