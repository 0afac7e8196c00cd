package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/i18nsync/config"
	"github.com/minios-linux/i18nsync/keys"
)

type recorder struct {
	name   string
	calls  []string
	failOn string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) hook(name string) error {
	r.calls = append(r.calls, name)
	if name == r.failOn {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) Setup(context.Context, RunContext) error { return r.hook("setup") }

func (r *recorder) OnLoad(_ context.Context, _ RunContext, _ string, src []byte) ([]byte, error) {
	if err := r.hook("onLoad"); err != nil {
		return nil, err
	}
	return append([]byte(r.name+":"), src...), nil
}

func (r *recorder) OnVisitKey(context.Context, RunContext, keys.ExtractedKey) error {
	return r.hook("onVisitKey")
}

func (r *recorder) OnEnd(context.Context, RunContext, EndSummary) error { return r.hook("onEnd") }

func (r *recorder) AfterSync(context.Context, RunContext, []TargetSummary) error {
	return r.hook("afterSync")
}

type setupOnly struct{ ran bool }

func (s *setupOnly) Name() string                           { return "setup-only" }
func (s *setupOnly) Setup(context.Context, RunContext) error { s.ran = true; return nil }

func TestRunnerDispatchesInOrder(t *testing.T) {
	a := &recorder{name: "a"}
	b := &recorder{name: "b"}
	s := &setupOnly{}
	r := NewRunner(zerolog.Nop(), a, s, b)
	ctx := context.Background()
	rc := RunContext{RunID: "r1"}

	assert.Empty(t, r.Setup(ctx, rc))
	out, diags := r.OnLoad(ctx, rc, "src/a.ts", []byte("x"))
	assert.Empty(t, diags)
	assert.Equal(t, "b:a:x", string(out))
	assert.Empty(t, r.OnVisitKey(ctx, rc, keys.ExtractedKey{}))
	assert.Empty(t, r.OnEnd(ctx, rc, EndSummary{}))
	assert.Empty(t, r.AfterSync(ctx, rc, nil))

	assert.Equal(t, []string{"setup", "onLoad", "onVisitKey", "onEnd", "afterSync"}, a.calls)
	assert.True(t, s.ran)
	assert.True(t, r.VisitsKeys())
	assert.Equal(t, 3, r.Len())
}

func TestRunnerFailureIsDiagnostic(t *testing.T) {
	bad := &recorder{name: "bad", failOn: "onLoad"}
	good := &recorder{name: "good"}
	r := NewRunner(zerolog.Nop(), bad, good)

	out, diags := r.OnLoad(context.Background(), RunContext{}, "src/a.ts", []byte("x"))
	assert.Equal(t, "good:x", string(out))
	require.Len(t, diags, 1)
	assert.Equal(t, keys.HookFailure, diags[0].Kind)
	assert.Equal(t, "src/a.ts", diags[0].Location.File)
	assert.Contains(t, diags[0].Message, "plugin bad: onLoad: boom")

	bad.failOn = "afterSync"
	diags = r.AfterSync(context.Background(), RunContext{}, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, []string{"onLoad", "afterSync"}, good.calls)
}

func TestNilRunner(t *testing.T) {
	var r *Runner
	out, diags := r.OnLoad(context.Background(), RunContext{}, "f", []byte("src"))
	assert.Equal(t, "src", string(out))
	assert.Nil(t, diags)
	assert.Nil(t, r.Setup(context.Background(), RunContext{}))
	assert.False(t, r.VisitsKeys())
	assert.Equal(t, 0, r.Len())
}

func TestExecPlugin(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	dir := t.TempDir()
	p := NewExecPlugin(config.Plugin{
		Name:      "shell",
		OnLoad:    `tr a-z A-Z`,
		OnEnd:     `cat > end.json`,
		AfterSync: `echo "$I18NSYNC_HOOK $I18NSYNC_RUN_ID" > after.txt`,
		Setup:     `echo broken >&2; exit 3`,
	})
	rc := RunContext{RunID: "abc", Root: dir}
	ctx := context.Background()

	out, err := p.OnLoad(ctx, rc, "src/a.ts", []byte("t('key')"))
	require.NoError(t, err)
	assert.Equal(t, "T('KEY')", string(out))

	require.NoError(t, p.OnEnd(ctx, rc, EndSummary{Files: 2, Keys: 5, Namespaces: []string{"translation"}}))
	data, err := os.ReadFile(filepath.Join(dir, "end.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"files":2,"keys":5,"namespaces":["translation"]}`, string(data))

	require.NoError(t, p.AfterSync(ctx, rc, nil))
	data, err = os.ReadFile(filepath.Join(dir, "after.txt"))
	require.NoError(t, err)
	assert.Equal(t, "afterSync abc", strings.TrimSpace(string(data)))

	err = p.Setup(ctx, rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	// Unconfigured hooks are no-ops.
	require.NoError(t, p.OnVisitKey(ctx, rc, keys.ExtractedKey{}))
	assert.False(t, NewRunner(zerolog.Nop(), p).VisitsKeys())
}

func TestExecPluginTimeout(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	p := NewExecPlugin(config.Plugin{Name: "slow", OnEnd: "sleep 5", Timeout: "50ms"})
	err := p.OnEnd(context.Background(), RunContext{Root: t.TempDir()}, EndSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
