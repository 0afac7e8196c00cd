package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/minios-linux/i18nsync/config"
	"github.com/minios-linux/i18nsync/hooks"
	"github.com/minios-linux/i18nsync/i18next"
	"github.com/minios-linux/i18nsync/keys"
	"github.com/minios-linux/i18nsync/lockfile"
	"github.com/minios-linux/i18nsync/merge"
)

const root = "/project"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type project struct {
	t   *testing.T
	fs  afero.Fs
	cfg *config.Config
}

func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(root, name), []byte(content), 0644))
	}
	cfg := config.Defaults()
	cfg.Concurrency = 4
	return &project{t: t, fs: fs, cfg: cfg}
}

func (p *project) runner(mod func(o *Options)) *Runner {
	p.t.Helper()
	opts := Options{Config: p.cfg, Root: root, Fs: p.fs, Logger: zerolog.Nop()}
	if mod != nil {
		mod(&opts)
	}
	r, err := New(opts)
	require.NoError(p.t, err)
	return r
}

func (p *project) run(mod func(o *Options)) *Report {
	p.t.Helper()
	rep, err := p.runner(mod).Run(context.Background())
	require.NoError(p.t, err)
	return rep
}

func (p *project) read(name string) string {
	p.t.Helper()
	data, err := afero.ReadFile(p.fs, filepath.Join(root, name))
	require.NoError(p.t, err)
	return string(data)
}

func (p *project) exists(name string) bool {
	ok, _ := afero.Exists(p.fs, filepath.Join(root, name))
	return ok
}

func (p *project) leaves(name string) []string {
	p.t.Helper()
	doc, err := i18next.Parse([]byte(p.read(name)))
	require.NoError(p.t, err)
	var out []string
	doc.Walk(func(path []string, _ *i18next.Node) {
		out = append(out, strings.Join(path, "."))
	})
	sort.Strings(out)
	return out
}

func TestScenarioNestedKey(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.ts":                  "t('button.submit');\n",
		"locales/en/translation.json": "",
	})
	rep := p.run(nil)

	assert.Equal(t, 1, rep.Files)
	assert.Equal(t, "{\n  \"button\": {\n    \"submit\": \"\"\n  }\n}\n", p.read("locales/en/translation.json"))
	require.Len(t, rep.Targets, 1)
	assert.Equal(t, merge.Written, rep.Targets[0].State)
	assert.Equal(t, []string{"translation:button.submit"}, rep.Targets[0].Added)
}

func TestScenarioPlurals(t *testing.T) {
	p := newProject(t, map[string]string{"src/app.ts": "t('apple', {count: 5});\n"})
	p.cfg.Locales = []string{"en", "ru"}
	p.run(nil)

	assert.Equal(t, []string{"apple_one", "apple_other"}, p.leaves("locales/en/translation.json"))
	assert.Equal(t, []string{"apple_few", "apple_many", "apple_one", "apple_other"}, p.leaves("locales/ru/translation.json"))
}

func TestScenarioNamespacePrefix(t *testing.T) {
	p := newProject(t, map[string]string{"src/app.ts": "t('common:button.save');\n"})
	rep := p.run(nil)

	assert.Equal(t, []string{"button.save"}, p.leaves("locales/en/common.json"))
	assert.Empty(t, p.leaves("locales/en/translation.json"))
	assert.Len(t, rep.Targets, 2)
}

func TestScenarioDeadKeyRemoved(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.ts":                   "t('title');\n",
		"locales/en/translation.json": "{\n  \"greeting\": \"Hello\",\n  \"title\": \"Title\"\n}\n",
	})
	rep := p.run(nil)

	_, removed := rep.Counts()
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"translation:greeting"}, rep.Targets[0].Removed)
	assert.Equal(t, []string{"title"}, p.leaves("locales/en/translation.json"))

	results, _, err := p.runner(nil).Check(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Dead)
}

func TestScenarioConflict(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/a.ts": "t('x.y', {defaultValue: 'A'});\n",
		"src/b.ts": "t('x.y', {defaultValue: 'B'});\n",
	})
	rep := p.run(nil)

	require.Len(t, rep.Conflicts, 1)
	c := rep.Conflicts[0]
	assert.Equal(t, "x.y", c.Key)
	require.Len(t, c.Values, 2)
	assert.Equal(t, "A", c.Values[0].Value)
	assert.Equal(t, "B", c.Values[1].Value)
	assert.Contains(t, p.read("locales/en/translation.json"), `"y": "A"`)

	assert.NoError(t, Strictness{}.Check(rep))
	err := Strictness{FailOnConflict: true}.Check(rep)
	var serr *StrictError
	require.True(t, errors.As(err, &serr))
	assert.Contains(t, serr.Error(), "1 key conflict(s)")
}

func TestScenarioPluralConflictReportedOnce(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/a.ts": "t('apple', {count: n, defaultValue: 'A'});\n",
		"src/b.ts": "t('apple', {count: n, defaultValue: 'B'});\n",
	})
	p.cfg.Locales = []string{"en", "ru"}
	rep := p.run(nil)

	require.Len(t, rep.Conflicts, 1)
	assert.Equal(t, "apple", rep.Conflicts[0].Key)
}

func TestIdempotent(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.tsx": `
const { t } = useTranslation('shop');
export const C = () => <Trans i18nKey="welcome">Hi <strong>you</strong></Trans>;
t('items', {count: 2});
t('title', 'Shop');
`,
	})
	p.cfg.Locales = []string{"en", "de"}
	first := p.run(nil)
	require.True(t, first.Changed())

	second := p.run(nil)
	assert.False(t, second.Changed())
	for _, tr := range second.Targets {
		assert.Equal(t, merge.Skipped, tr.State, tr.Path)
	}
}

func TestNonDestructive(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.ts":                   "t('greeting', 'Hello');\n",
		"locales/de/translation.json": "{\"greeting\": \"Hallo\"}",
	})
	p.cfg.Locales = []string{"de"}
	p.run(nil)
	assert.Equal(t, "{\"greeting\": \"Hallo\"}", p.read("locales/de/translation.json"))
}

func TestFourSpaceIndentPreserved(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.ts":                   "t('old.k'); t('new');\n",
		"locales/en/translation.json": "{\n    \"old\": {\n        \"k\": \"v\"\n    }\n}",
	})
	p.cfg.Sort = false
	p.run(nil)
	assert.Equal(t, "{\n    \"old\": {\n        \"k\": \"v\"\n    },\n    \"new\": \"\"\n}", p.read("locales/en/translation.json"))
}

func TestConfiguredIndentationWins(t *testing.T) {
	p := newProject(t, map[string]string{"src/app.ts": "t('a.b');\n"})
	p.cfg.Indentation = "\t"
	p.run(nil)
	assert.Equal(t, "{\n\t\"a\": {\n\t\t\"b\": \"\"\n\t}\n}\n", p.read("locales/en/translation.json"))
}

func TestDryRunWritesNothing(t *testing.T) {
	p := newProject(t, map[string]string{"src/app.ts": "t('a');\n"})
	rep := p.run(func(o *Options) { o.DryRun = true })

	assert.True(t, rep.DryRun)
	assert.True(t, rep.Changed())
	assert.False(t, p.exists("locales/en/translation.json"))

	err := Strictness{CI: true}.Check(rep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of date")
}

func TestMergedNamespaces(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.ts":           "t('common:save'); t('title');\n",
		"locales/en/all.json": "{\"legacy\": {\"x\": \"1\"}}",
	})
	p.cfg.MergeNamespaces = true
	rep := p.run(nil)

	require.Len(t, rep.Targets, 1)
	assert.Equal(t, "locales/en/all.json", rep.Targets[0].Path)
	assert.Equal(t, []string{"common.save", "legacy.x", "translation.title"}, p.leaves("locales/en/all.json"))
}

func TestOutputTemplate(t *testing.T) {
	p := newProject(t, map[string]string{"src/app.ts": "t('nav:home');\n"})
	p.cfg.Output = "public/i18n/{{lng}}.{{ns}}.json"
	p.run(nil)

	assert.True(t, p.exists("public/i18n/en.nav.json"))
	assert.True(t, p.exists("public/i18n/en.translation.json"))
}

func TestPreservePatternsAndDynamicKeys(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.ts": "t(`status.${code}`);\n",
		"locales/en/translation.json": `{"status": {"ok": "OK", "err": "Error"}, "legacy": {"a": "A"}, "dead": "x"}`,
	})
	p.cfg.PreservePatterns = []string{"status.*", "legacy.*"}
	rep := p.run(nil)

	assert.Equal(t, []string{"translation:dead"}, rep.Targets[0].Removed)
	assert.Equal(t, []string{"legacy.a", "status.err", "status.ok"}, p.leaves("locales/en/translation.json"))
}

func TestDiagnosticsAndFailOnWarnings(t *testing.T) {
	p := newProject(t, map[string]string{"src/app.ts": "t(key);\nt(`a.${b}`);\n"})
	rep := p.run(nil)

	require.Len(t, rep.Diagnostics, 2)
	for _, d := range rep.Diagnostics {
		assert.Equal(t, keys.UnresolvableKey, d.Kind)
		assert.Equal(t, "src/app.ts", d.Location.File)
	}
	assert.NoError(t, Strictness{}.Check(rep))
	assert.Error(t, Strictness{FailOnWarnings: true}.Check(rep))
}

func TestParseFailureSkipsFile(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/ok.ts":  "t('ok');\n",
		"src/bad.ts": "\xff\xfe",
	})
	rep := p.run(nil)
	require.Len(t, rep.ParseFailures, 1)
	assert.Equal(t, "src/bad.ts", rep.ParseFailures[0].File)
	assert.Equal(t, []string{"ok"}, p.leaves("locales/en/translation.json"))

	_, err := p.runner(func(o *Options) { o.FailFast = true }).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFailFast))
}

func TestCacheSkipsUnchangedSources(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/a.ts": "t('a');\n",
		"src/b.ts": "t('b');\n",
	})
	lf, err := lockfile.Load(p.fs, root)
	require.NoError(t, err)

	first := p.run(func(o *Options) { o.Cache = lf })
	assert.Equal(t, 0, first.Cached)

	require.NoError(t, afero.WriteFile(p.fs, filepath.Join(root, "src/b.ts"), []byte("t('c');\n"), 0644))
	second := p.run(func(o *Options) { o.Cache = lf })
	assert.Equal(t, 1, second.Cached)
	assert.Equal(t, []string{"a", "c"}, p.leaves("locales/en/translation.json"))

	p.cfg.Functions = []string{"t", "i18n.t"}
	third := p.run(func(o *Options) { o.Cache = lf })
	assert.Equal(t, 0, third.Cached)
}

type countingPlugin struct {
	visited atomic.Int32
	synced  atomic.Int32
}

func (c *countingPlugin) Name() string { return "count" }

func (c *countingPlugin) OnLoad(_ context.Context, _ hooks.RunContext, _ string, src []byte) ([]byte, error) {
	return []byte(strings.ReplaceAll(string(src), "tr(", "t(")), nil
}

func (c *countingPlugin) OnVisitKey(context.Context, hooks.RunContext, keys.ExtractedKey) error {
	c.visited.Add(1)
	return nil
}

func (c *countingPlugin) AfterSync(_ context.Context, _ hooks.RunContext, targets []hooks.TargetSummary) error {
	c.synced.Add(int32(len(targets)))
	return errors.New("after sync failed")
}

func TestHooks(t *testing.T) {
	p := newProject(t, map[string]string{"src/app.ts": "tr('a'); t('b');\n"})
	plugin := &countingPlugin{}
	rep := p.run(func(o *Options) { o.Hooks = hooks.NewRunner(zerolog.Nop(), plugin) })

	assert.Equal(t, []string{"a", "b"}, p.leaves("locales/en/translation.json"))
	assert.Equal(t, int32(2), plugin.visited.Load())
	assert.Equal(t, int32(1), plugin.synced.Load())

	var hookDiags int
	for _, d := range rep.Diagnostics {
		if d.Kind == keys.HookFailure {
			hookDiags++
		}
	}
	assert.Equal(t, 1, hookDiags)
}

func TestRunOnlyLimitsNamespaces(t *testing.T) {
	p := newProject(t, map[string]string{"src/app.ts": "t('a'); t('common:b');\n"})
	r := p.runner(nil)
	rc := r.runContext("x")
	files, err := r.Discover()
	require.NoError(t, err)
	results, err := r.ExtractFiles(context.Background(), rc, files)
	require.NoError(t, err)

	rep, err := r.RunOnly(context.Background(), "x", results, map[string]bool{"common": true})
	require.NoError(t, err)
	require.Len(t, rep.Targets, 1)
	assert.Equal(t, "locales/en/common.json", rep.Targets[0].Path)
	assert.False(t, p.exists("locales/en/translation.json"))
}

func TestCheckRemove(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.ts":                   "t('live'); t('missing');\n",
		"locales/en/translation.json": `{"live": "L", "dead": "D"}`,
	})
	results, _, err := p.runner(nil).Check(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"translation:dead"}, results[0].Dead)
	assert.Equal(t, []string{"translation:missing"}, results[0].Missing)
	assert.Equal(t, []string{"dead", "live"}, p.leaves("locales/en/translation.json"))

	results, _, err = p.runner(nil).Check(context.Background(), []string{"en"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"translation:dead"}, results[0].Removed)
	assert.Equal(t, []string{"live"}, p.leaves("locales/en/translation.json"))
}

func TestStatus(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.ts":                  "t('a'); t('b'); t('c');\n",
		"locales/en/translation.json": `{"a": "A", "b": "", "old": "O"}`,
	})
	rows, err := p.runner(nil).Status(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 3, row.Total)
	assert.Equal(t, 1, row.Translated)
	assert.Equal(t, 1, row.Missing)
	assert.Equal(t, 1, row.Dead)
	assert.False(t, row.Complete())
	assert.InDelta(t, 33.33, row.Percent(), 0.01)
	assert.Equal(t, 3, row.Strings)
	assert.Equal(t, 1, row.Empty)
	assert.Equal(t, []string{"b"}, row.Untranslated)
}

func TestSectionDoc(t *testing.T) {
	doc, err := i18next.Parse([]byte(`{"common": {"save": "", "x": "X"}, "flat": "v"}`))
	require.NoError(t, err)

	assert.Same(t, doc, sectionDoc(doc, nil))
	sub := sectionDoc(doc, []string{"common"})
	require.NotNil(t, sub)
	total, translated, empty := sub.Stats()
	assert.Equal(t, []int{2, 1, 1}, []int{total, translated, empty})
	assert.Equal(t, []string{"save"}, sub.UntranslatedKeys("."))
	assert.Nil(t, sectionDoc(doc, []string{"flat"}))
	assert.Nil(t, sectionDoc(doc, []string{"missing"}))
}

func TestSyncLocales(t *testing.T) {
	p := newProject(t, map[string]string{
		"locales/en/translation.json": `{"apple_one": "apple", "apple_other": "apples", "nav": {"home": "Home"}}`,
		"locales/ru/translation.json": `{"nav": {"home": "Главная"}}`,
		"locales/en/common.json":      `{"save": "Save"}`,
	})
	p.cfg.Locales = []string{"en", "ru"}
	reports, diags, err := p.runner(nil).SyncLocales(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, reports, 2)

	assert.Equal(t, []string{"apple_few", "apple_many", "apple_one", "apple_other", "nav.home"}, p.leaves("locales/ru/translation.json"))
	assert.Equal(t, []string{"save"}, p.leaves("locales/ru/common.json"))
	assert.Contains(t, p.read("locales/ru/translation.json"), "Главная")
}

func TestExtractThenSyncConverges(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/app.ts":                  "t('apple', {count: 5});\n",
		"locales/ja/translation.json": `{"apple": "りんご"}`,
	})
	p.cfg.Locales = []string{"en", "ja", "ru"}

	for i := 0; i < 3; i++ {
		r := p.runner(nil)
		rep, err := r.Run(context.Background())
		require.NoError(t, err)
		targets, diags, err := r.SyncLocales(context.Background(), nil, true)
		require.NoError(t, err)
		assert.Empty(t, diags)
		for _, tr := range targets {
			assert.False(t, tr.Changed(), "pass %d: sync changed %s: +%v -%v", i, tr.Path, tr.Added, tr.Removed)
		}
		if i > 0 {
			assert.False(t, rep.Changed(), "pass %d: extract changed files", i)
		}
	}

	assert.Equal(t, []string{"apple"}, p.leaves("locales/ja/translation.json"))
	assert.Contains(t, p.read("locales/ja/translation.json"), "りんご")
	assert.Equal(t, []string{"apple_few", "apple_many", "apple_one", "apple_other"}, p.leaves("locales/ru/translation.json"))
}

func TestDefaultInputMatchesTopLevelAndNestedSources(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/a.ts":       "t('top');\n",
		"src/x/b.tsx":    "t('nested');\n",
		"src/x/y/c.js":   "t('deep');\n",
		"lib/ignored.ts": "t('outside');\n",
		"src/readme.md":  "t('doc');\n",
	})
	require.Equal(t, []string{"src/**/*.{ts,tsx,js,jsx}"}, p.cfg.Input)

	rep := p.run(nil)
	assert.Equal(t, 3, rep.Files)
	assert.Equal(t, []string{"deep", "nested", "top"}, p.leaves("locales/en/translation.json"))
}

func TestInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Locales = nil
	_, err := New(Options{Config: cfg, Root: root, Fs: afero.NewMemMapFs()})
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
}
