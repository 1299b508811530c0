package instance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BadgerOps/craftctl/internal/backup"
	"github.com/BadgerOps/craftctl/internal/engine"
	"github.com/BadgerOps/craftctl/internal/prompt"
	"github.com/BadgerOps/craftctl/internal/safety"
	"github.com/BadgerOps/craftctl/internal/store"
	"github.com/BadgerOps/craftctl/internal/versions"
)

// maxNameAttempts bounds how often a blank or unusable name is re-asked.
const maxNameAttempts = 5

// LaunchRequest carries what the caller already knows. Blank fields are
// resolved interactively.
type LaunchRequest struct {
	Name       string
	LaunchType LaunchType
	Version    string
}

// LaunchOutcome reports how a launch ended.
type LaunchOutcome struct {
	Instance *Instance
	// States is every state entered, in order.
	States  []State
	Results []engine.Result
	Archive *backup.Archive
	Restore *backup.RestoreReport
	PID     int
}

// Started reports whether the server process was started.
func (o *LaunchOutcome) Started() bool {
	return o.Instance.State == StateStarted
}

func (m *Manager) enter(out *LaunchOutcome, s State) {
	out.Instance.State = s
	out.States = append(out.States, s)
	m.logger.Debug("launch state", "server", out.Instance.Name, "state", s)
}

// Launch resolves the server, its launch type and version, reconciles the jar
// and starts the process. A refused creation or a refused download ends the
// launch without an error; Started reports which way it went.
func (m *Manager) Launch(ctx context.Context, req LaunchRequest) (*LaunchOutcome, error) {
	inst := &Instance{State: StateUnnamed, LaunchType: req.LaunchType, Version: strings.TrimSpace(req.Version)}
	out := &LaunchOutcome{Instance: inst, States: []State{StateUnnamed}}

	name, err := m.resolveName(ctx, req.Name)
	if err != nil {
		return out, err
	}
	inst.Name, inst.RootDir = name, m.RootDir(name)
	m.enter(out, StateNamed)

	exists, err := m.Exists(name)
	if err != nil {
		return out, err
	}
	if !exists {
		m.enter(out, StateNotFound)
		ok, err := m.decider.Confirm(ctx, fmt.Sprintf("The server %s does not exist, would you like to create it?", name), false)
		if err != nil {
			return out, err
		}
		if !ok {
			m.enter(out, StateDeclined)
			return out, nil
		}
		created, err := m.Create(ctx, name)
		if err != nil {
			return out, err
		}
		inst.Name, inst.RootDir = created.Name, created.RootDir
		if inst.LaunchType == LaunchUnspecified {
			inst.LaunchType = created.LaunchType
		}
		m.enter(out, StateCreated)
	}
	m.enter(out, StateFound)

	m.enter(out, StateLaunchTypeUnresolved)
	if inst.LaunchType == LaunchUnspecified {
		lt, err := m.chooseLaunchType(ctx, inst.RootDir)
		if err != nil {
			return out, m.abort(out, err)
		}
		inst.LaunchType = lt
	}
	if err := m.resolveServerType(inst); err != nil {
		return out, m.abort(out, err)
	}
	m.enter(out, StateLaunchTypeResolved)

	switch inst.LaunchType {
	case LaunchBackup:
		a, err := m.archiver.Backup(ctx, inst.Target(), "")
		switch {
		case errors.Is(err, backup.ErrWorldNotFound):
			m.logger.Warn("no world to back up yet, continuing", "server", inst.Name)
		case err != nil:
			return out, m.abort(out, err)
		default:
			out.Archive = a
		}
	case LaunchRestore:
		rep, err := m.restore(ctx, inst)
		if err != nil {
			return out, m.abort(out, err)
		}
		out.Restore = rep
	}

	if inst.ServerType == ServerLegacy && inst.Version == "" {
		v, err := m.askForVersion(ctx)
		if err != nil {
			return out, m.abort(out, err)
		}
		inst.Version = v
	}

	sel := inst.ServerType.Selector()
	results, err := m.reconciler.Reconcile(ctx, sel, inst.Version)
	out.Results = append(out.Results, results...)
	if err != nil {
		if interrupted(err) {
			return out, m.abort(out, err)
		}
		m.logger.Warn("reconciliation failed", "server", inst.Name, "type", inst.ServerType, "error", err)
	} else if n := len(results); n > 0 {
		last := results[n-1]
		inst.Version = last.Version
		if !last.Usable() {
			m.logger.Info("no server jar after reconciliation", "server", inst.Name, "channel", last.Channel, "latest", last.Latest)
		}
	}
	m.enter(out, StateReconciled)

	return out, m.start(ctx, out, sel)
}

// start launches the jar, offering one forced download when it is missing.
func (m *Manager) start(ctx context.Context, out *LaunchOutcome, sel engine.Selector) error {
	inst := out.Instance
	for retried := false; ; retried = true {
		if m.reconciler.Installed(inst.Version) {
			break
		}
		if retried {
			return m.abort(out, fmt.Errorf("%w: %s %s", ErrNotStartable, inst.ServerType, inst.Version))
		}

		question := fmt.Sprintf("The server jar for %s is missing, would you like to download it?", inst.Version)
		if inst.Version == "" {
			question = fmt.Sprintf("No %s server jar is selected, would you like to download one?", inst.ServerType)
		}
		ok, err := m.decider.Confirm(ctx, question, false)
		if err != nil {
			return m.abort(out, err)
		}
		if !ok {
			m.logger.Info("launch abandoned, server jar missing", "server", inst.Name, "version", inst.Version)
			m.enter(out, StateAborted)
			m.recordLaunch(inst, "skipped", nil)
			return nil
		}
		if err := m.forceReconcile(ctx, out, sel); err != nil {
			return m.abort(out, err)
		}
		m.enter(out, StateReconciled)
	}

	pid, err := m.launcher.Launch(ctx, LaunchSpec{
		Server:  inst.Name,
		Version: inst.Version,
		Dir:     inst.RootDir,
		Jar:     m.reconciler.ArtifactPath(inst.Version),
	})
	if err != nil {
		return m.abort(out, err)
	}
	out.PID = pid
	m.enter(out, StateStarted)
	m.recordLaunch(inst, "started", nil)
	return nil
}

// forceReconcile installs the instance's version explicitly, or runs the
// channel reconciliation again when no version is selected.
func (m *Manager) forceReconcile(ctx context.Context, out *LaunchOutcome, sel engine.Selector) error {
	inst := out.Instance
	if inst.Version != "" {
		res, err := m.reconciler.UpdateTo(ctx, sel, inst.Version)
		if err != nil {
			return err
		}
		out.Results = append(out.Results, *res)
		return nil
	}

	results, err := m.reconciler.Reconcile(ctx, sel, "")
	out.Results = append(out.Results, results...)
	if err != nil {
		return err
	}
	if n := len(results); n > 0 {
		inst.Version = results[n-1].Version
	}
	return nil
}

func (m *Manager) abort(out *LaunchOutcome, err error) error {
	m.enter(out, StateAborted)
	m.recordLaunch(out.Instance, "failed", err)
	return err
}

func (m *Manager) recordLaunch(inst *Instance, status string, cause error) {
	if m.history == nil {
		return
	}
	l := &store.Launch{
		Server:     inst.Name,
		LaunchType: inst.LaunchType.String(),
		ServerType: inst.ServerType.String(),
		Version:    inst.Version,
		Status:     status,
		StartedAt:  m.now().UTC(),
	}
	if cause != nil {
		l.ErrorMessage = cause.Error()
	}
	if err := m.history.RecordLaunch(l); err != nil {
		m.logger.Warn("failed to record launch", "server", inst.Name, "error", err)
	}
}

// interrupted reports errors that end a launch rather than fall through to
// the missing-jar retry.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, prompt.ErrNonInteractive)
}

// resolveName returns name or asks for one, listing the existing servers.
func (m *Manager) resolveName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name != "" {
		return name, safety.ValidateName(name)
	}

	existing, err := m.Names()
	if err != nil {
		return "", err
	}
	question := "Which server would you like to start?"
	if len(existing) > 0 {
		question = fmt.Sprintf("Which server would you like to start? (%s)", strings.Join(existing, ", "))
	}

	for i := 0; i < maxNameAttempts; i++ {
		answer, err := m.decider.Input(ctx, question, "")
		if err != nil {
			return "", err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			m.logger.Warn("a server name is required")
			continue
		}
		if err := safety.ValidateName(answer); err != nil {
			m.logger.Warn("unusable server name", "name", answer, "error", err)
			continue
		}
		return answer, nil
	}
	return "", ErrNameRequired
}

// chooseLaunchType offers the marker-advertised launch types plus legacy.
func (m *Manager) chooseLaunchType(ctx context.Context, root string) (LaunchType, error) {
	found, err := DiscoverLaunchTypes(root)
	if err != nil {
		return LaunchUnspecified, err
	}

	choices := found
	hasDefault := false
	for _, lt := range found {
		if lt == LaunchDefault {
			hasDefault = true
		}
	}
	if !hasDefault {
		choices = append(choices, LaunchDefault)
	}
	choices = append(choices, LaunchLegacy)

	options := make([]string, len(choices))
	def := 0
	for i, lt := range choices {
		options[i] = lt.String()
		if lt == LaunchLegacy {
			options[i] = legacyOption
		}
		if lt == LaunchDefault {
			def = i
		}
	}

	idx, err := m.decider.Select(ctx, "How would you like to launch the server?", options, def)
	if err != nil {
		return LaunchUnspecified, err
	}
	return choices[idx], nil
}

// resolveServerType maps the launch type and the default marker onto a
// server type and seeds the version.
func (m *Manager) resolveServerType(inst *Instance) error {
	if inst.LaunchType == LaunchLegacy {
		inst.ServerType = ServerLegacy
		return nil
	}

	marker, err := ReadDefaultMarker(inst.RootDir)
	if err != nil {
		return err
	}
	inst.ServerType = marker.ServerType

	if ch, tracked := marker.ServerType.Channel(); tracked {
		inst.Version = m.versions.Get(ch)
	} else if marker.Version != "" {
		inst.Version = marker.Version
	}
	return nil
}

// restore asks which archive to restore, defaulting to the newest listed.
func (m *Manager) restore(ctx context.Context, inst *Instance) (*backup.RestoreReport, error) {
	archives, err := m.archiver.List(inst.Target())
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		return nil, fmt.Errorf("%w: %s has no backups", backup.ErrInvalidSelection, inst.Name)
	}

	options := make([]string, len(archives))
	for i, a := range archives {
		options[i] = a.Name
	}
	idx, err := m.decider.Select(ctx, "Which backup would you like to restore?", options, len(options)-1)
	if err != nil {
		return nil, err
	}
	return m.archiver.Restore(ctx, inst.Target(), idx)
}

// askForVersion blocks for a legacy version id, listing the jars on disk and
// defaulting to the selected vanilla version.
func (m *Manager) askForVersion(ctx context.Context) (string, error) {
	installed, err := m.reconciler.InstalledVersions()
	if err != nil {
		return "", err
	}

	question := "Which version would you like to run?"
	if len(installed) > 0 {
		question = fmt.Sprintf("Which version would you like to run? (downloaded: %s)", strings.Join(installed, ", "))
	}
	def := ""
	if m.versions != nil {
		def = m.versions.Get(versions.Vanilla)
	}

	v, err := m.decider.Input(ctx, question, def)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", engine.ErrVersionRequired
	}
	if err := safety.ValidateName(v); err != nil {
		return "", fmt.Errorf("version %q: %w", v, err)
	}
	return v, nil
}
