package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/minios-linux/i18nsync/config"
	"github.com/minios-linux/i18nsync/keys"
)

// ExecPlugin runs configured shell commands at each hook. Commands run in
// the project root through "sh -c". OnLoad pipes the source through the
// command; the other hooks receive a JSON payload on stdin.
//
// Extra environment: I18NSYNC_HOOK, I18NSYNC_RUN_ID and, for onLoad,
// I18NSYNC_FILE.
type ExecPlugin struct {
	cfg     config.Plugin
	timeout time.Duration
	// Shell is the interpreter, "sh" when empty.
	Shell string
}

// NewExecPlugin wraps a plugin entry of the config file.
func NewExecPlugin(cfg config.Plugin) *ExecPlugin {
	return &ExecPlugin{cfg: cfg, timeout: cfg.CommandTimeout()}
}

// FromConfig builds an ExecPlugin for every configured plugin.
func FromConfig(plugins []config.Plugin) []Plugin {
	out := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, NewExecPlugin(p))
	}
	return out
}

func (p *ExecPlugin) Name() string { return p.cfg.Name }

func (p *ExecPlugin) run(ctx context.Context, rc RunContext, hook, command string, stdin []byte, env ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	shell := p.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = rc.Root
	cmd.Env = append(os.Environ(), "I18NSYNC_HOOK="+hook, "I18NSYNC_RUN_ID="+rc.RunID)
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.WaitDelay = time.Second

	var stdout bytes.Buffer
	var stderrBuf strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%q timed out after %s", command, p.timeout)
		}
		if msg := strings.TrimSpace(stderrBuf.String()); msg != "" {
			return nil, fmt.Errorf("%q failed: %w: %s", command, err, msg)
		}
		return nil, fmt.Errorf("%q failed: %w", command, err)
	}
	return stdout.Bytes(), nil
}

func (p *ExecPlugin) runJSON(ctx context.Context, rc RunContext, hook, command string, payload interface{}) error {
	if command == "" {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", hook, err)
	}
	_, err = p.run(ctx, rc, hook, command, data)
	return err
}

func (p *ExecPlugin) Setup(ctx context.Context, rc RunContext) error {
	return p.runJSON(ctx, rc, "setup", p.cfg.Setup, rc)
}

// OnLoad returns nil content when no onLoad command is configured, which
// keeps the source unchanged.
func (p *ExecPlugin) OnLoad(ctx context.Context, rc RunContext, file string, src []byte) ([]byte, error) {
	if p.cfg.OnLoad == "" {
		return nil, nil
	}
	return p.run(ctx, rc, "onLoad", p.cfg.OnLoad, src, "I18NSYNC_FILE="+file)
}

func (p *ExecPlugin) OnVisitKey(ctx context.Context, rc RunContext, k keys.ExtractedKey) error {
	return p.runJSON(ctx, rc, "onVisitKey", p.cfg.OnVisitKey, visitPayload(k))
}

func (p *ExecPlugin) OnEnd(ctx context.Context, rc RunContext, s EndSummary) error {
	return p.runJSON(ctx, rc, "onEnd", p.cfg.OnEnd, s)
}

func (p *ExecPlugin) AfterSync(ctx context.Context, rc RunContext, targets []TargetSummary) error {
	return p.runJSON(ctx, rc, "afterSync", p.cfg.AfterSync, targets)
}

// VisitsKeys reports whether an onVisitKey command is configured.
func (p *ExecPlugin) VisitsKeys() bool {
	return p.cfg.OnVisitKey != ""
}

type keyPayload struct {
	Namespace    string        `json:"ns"`
	Key          []string      `json:"path"`
	DefaultValue string        `json:"defaultValue,omitempty"`
	Count        bool          `json:"count,omitempty"`
	Ordinal      bool          `json:"ordinal,omitempty"`
	Context      []string      `json:"context,omitempty"`
	Location     keys.Location `json:"location"`
}

func visitPayload(k keys.ExtractedKey) keyPayload {
	kp := keyPayload{
		Namespace:    k.Namespace,
		Key:          k.Path,
		DefaultValue: k.DefaultValue,
		Count:        k.HasCount,
		Ordinal:      k.Ordinal,
		Location:     k.Location,
	}
	if k.HasContext {
		kp.Context = k.Contexts()
	}
	return kp
}
