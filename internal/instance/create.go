package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/BadgerOps/craftctl/internal/safety"
)

const (
	propertiesFile = "server.properties"
	eulaFile       = "eula.txt"
	opsFile        = "ops.json"
	whitelistFile  = "whitelist.json"
	iconFile       = "server-icon.png"

	operatorLevel = 4
)

// Scaffold holds the settings every new server starts from.
type Scaffold struct {
	// OperatorName and OperatorUUID, when both set, seed ops.json and
	// whitelist.json.
	OperatorName string
	OperatorUUID string
	// IconPath is copied to server-icon.png when it exists.
	IconPath string
	MOTD     string
	Port     int
}

func (s Scaffold) withDefaults() Scaffold {
	if s.MOTD == "" {
		s.MOTD = "A Minecraft Server"
	}
	if s.Port == 0 {
		s.Port = 25565
	}
	return s
}

type opEntry struct {
	UUID                string `json:"uuid"`
	Name                string `json:"name"`
	Level               int    `json:"level"`
	BypassesPlayerLimit bool   `json:"bypassesPlayerLimit"`
}

type whitelistEntry struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Create makes a new server directory and populates it. A name that is blank,
// unusable or already taken is asked for again; an existing directory is
// never touched.
func (m *Manager) Create(ctx context.Context, name string) (*Instance, error) {
	if err := os.MkdirAll(m.serversDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating servers directory: %w", err)
	}

	name, root, err := m.claimDirectory(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}

	if err := m.populate(ctx, name, root); err != nil {
		if rmErr := os.RemoveAll(root); rmErr != nil {
			m.logger.Warn("failed to remove partially created server", "path", root, "error", rmErr)
		}
		return nil, fmt.Errorf("creating server %s: %w", name, err)
	}

	m.logger.Info("server created", "server", name, "path", root)
	return &Instance{Name: name, RootDir: root, LaunchType: LaunchDefault, State: StateFound}, nil
}

// claimDirectory creates the server directory with os.Mkdir so an existing
// one is detected rather than reused.
func (m *Manager) claimDirectory(ctx context.Context, name string) (string, string, error) {
	var lastErr error
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		if name == "" {
			answer, err := m.decider.Input(ctx, "What would you like to name the server?", "")
			if err != nil {
				if lastErr != nil {
					return "", "", errors.Join(lastErr, err)
				}
				return "", "", err
			}
			name = strings.TrimSpace(answer)
		}
		if name == "" {
			lastErr = ErrNameRequired
			m.logger.Warn("a server name is required")
			continue
		}
		if err := safety.ValidateName(name); err != nil {
			lastErr = err
			m.logger.Warn("unusable server name", "name", name, "error", err)
			name = ""
			continue
		}

		root := m.RootDir(name)
		err := os.Mkdir(root, 0o755)
		if err == nil {
			return name, root, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("creating %s: %w", root, err)
		}
		lastErr = fmt.Errorf("%w: %s", ErrDirectoryConflict, name)
		m.logger.Warn("a server with that name already exists", "server", name)
		name = ""
	}
	if lastErr == nil {
		lastErr = ErrNameRequired
	}
	return "", "", lastErr
}

func (m *Manager) populate(ctx context.Context, name, root string) error {
	answer, err := m.decider.Input(ctx, "What should a default launch run? (vanilla, snapshot, custom or a version id)", "vanilla")
	if err != nil {
		return err
	}
	marker := ParseDefaultMarker(answer)

	files := []struct {
		name    string
		content string
	}{
		{LaunchBackup.MarkerFile(), ""},
		{LaunchRestore.MarkerFile(), ""},
		{LaunchDefault.MarkerFile(), marker.String() + "\n"},
		{eulaFile, "eula=true\n"},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(root, f.name), []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}

	props, err := m.askProperties(ctx, name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := props.Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(root, propertiesFile), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", propertiesFile, err)
	}

	if err := m.writeOperator(root); err != nil {
		return err
	}
	return m.copyIcon(root)
}

func (m *Manager) askProperties(ctx context.Context, name string) (Properties, error) {
	props := DefaultProperties(name, m.scaffold.MOTD, m.scaffold.Port)

	change, err := m.decider.Confirm(ctx, "Would you like to change the default server settings?", false)
	if err != nil {
		return props, err
	}
	if props.MOTD, err = m.decider.Input(ctx, "What should the message of the day be?", props.MOTD); err != nil {
		return props, err
	}
	if !change {
		return props, nil
	}

	idx, err := m.decider.Select(ctx, "Game mode", gamemodes, 0)
	if err != nil {
		return props, err
	}
	props.Gamemode = gamemodes[idx]

	if idx, err = m.decider.Select(ctx, "Difficulty", difficulties, 1); err != nil {
		return props, err
	}
	props.Difficulty = difficulties[idx]

	// Selects, not confirms: --yes must not switch these on.
	if idx, err = m.decider.Select(ctx, "Hardcore mode", toggles, 0); err != nil {
		return props, err
	}
	props.Hardcore = idx == 1

	if idx, err = m.decider.Select(ctx, "Whitelist", toggles, 0); err != nil {
		return props, err
	}
	props.Whitelist = idx == 1
	return props, nil
}

// writeOperator seeds ops.json and whitelist.json with the configured operator.
func (m *Manager) writeOperator(root string) error {
	if m.scaffold.OperatorName == "" || m.scaffold.OperatorUUID == "" {
		return nil
	}
	id, err := uuid.Parse(m.scaffold.OperatorUUID)
	if err != nil {
		return fmt.Errorf("operator uuid %q: %w", m.scaffold.OperatorUUID, err)
	}

	ops := []opEntry{{UUID: id.String(), Name: m.scaffold.OperatorName, Level: operatorLevel, BypassesPlayerLimit: true}}
	if err := writeJSON(filepath.Join(root, opsFile), ops); err != nil {
		return err
	}
	allowed := []whitelistEntry{{UUID: id.String(), Name: m.scaffold.OperatorName}}
	return writeJSON(filepath.Join(root, whitelistFile), allowed)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// copyIcon copies the configured icon. A missing icon is not an error.
func (m *Manager) copyIcon(root string) error {
	if m.scaffold.IconPath == "" {
		return nil
	}
	src, err := os.Open(m.scaffold.IconPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			m.logger.Info("server icon not found, skipping", "path", m.scaffold.IconPath)
			return nil
		}
		return fmt.Errorf("opening server icon: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(root, iconFile))
	if err != nil {
		return fmt.Errorf("creating %s: %w", iconFile, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copying server icon: %w", err)
	}
	return dst.Close()
}
