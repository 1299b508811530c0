package instance

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestJavaLauncherCommand(t *testing.T) {
	l := NewJavaLauncher("", "4GB", []string{"-XX:+UseG1GC"}, testLogger())
	spec := LaunchSpec{Server: "alpha", Version: "1.20.1", Dir: "/srv/alpha", Jar: "/srv/versions/minecraft_server.1.20.1.jar"}

	cmd, err := l.Command(spec)
	if err != nil {
		t.Fatalf("Command() failed: %v", err)
	}
	want := "java -Xmx4G -XX:+UseG1GC -jar /srv/versions/minecraft_server.1.20.1.jar nogui"
	if got := strings.Join(cmd.Args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
	if cmd.Dir != spec.Dir {
		t.Errorf("dir = %q, want %q", cmd.Dir, spec.Dir)
	}
}

func TestJavaLauncherRejectsBadHeap(t *testing.T) {
	l := NewJavaLauncher("java", "plenty", nil, testLogger())
	if _, err := l.Command(LaunchSpec{Jar: "server.jar"}); err == nil {
		t.Error("expected invalid heap size to fail")
	}
}

func TestJavaLauncherMissingBinary(t *testing.T) {
	l := NewJavaLauncher(filepath.Join(t.TempDir(), "no-java"), "2G", nil, testLogger())
	if _, err := l.Launch(context.Background(), LaunchSpec{Dir: t.TempDir(), Jar: "server.jar"}); err == nil {
		t.Error("expected a missing java binary to fail")
	}
}
