package plugin_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/plugscan/internal/paths"
	"github.com/mattjoyce/plugscan/internal/plugin"
	"github.com/mattjoyce/plugscan/internal/plugin/mocks"
)

func addPlugin(t *testing.T, root, name, body string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if body != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, plugin.DescriptorName), []byte(body), 0o644))
	}
	return dir
}

func descriptor(name string) string {
	return fmt.Sprintf(`(name: %q, description: "", bin: (path: "run"))`, name)
}

func drain(p *plugin.Pipeline) []plugin.LoadedPlugin {
	var out []plugin.LoadedPlugin
	for lp := range p.LoadAllAsync() {
		out = append(out, lp)
	}
	return out
}

func sourcesOf(lps []plugin.LoadedPlugin) []string {
	out := make([]string, 0, len(lps))
	for _, lp := range lps {
		out = append(out, lp.Source)
	}
	return out
}

func TestPipelineUserAndSystemRoots(t *testing.T) {
	base := t.TempDir()
	user := filepath.Join(base, "home", "u", ".plugins")
	system := filepath.Join(base, "usr", "lib", "plugins")

	userFoo := addPlugin(t, user, "foo", descriptor("ConfigA"))
	systemFoo := addPlugin(t, system, "foo", descriptor("ConfigB"))
	addPlugin(t, system, "bar", "")

	p := plugin.NewPipeline(paths.Static{user, system}, plugin.NewRONLoader(nil))

	for name, got := range map[string][]plugin.LoadedPlugin{
		"sync":  p.LoadAll(),
		"async": drain(p),
	} {
		t.Run(name, func(t *testing.T) {
			require.Len(t, got, 2)
			assert.Equal(t, userFoo, got[0].Source)
			assert.Equal(t, "ConfigA", got[0].Config.Name)
			assert.Nil(t, got[0].Pattern)
			assert.Equal(t, systemFoo, got[1].Source)
			assert.Equal(t, "ConfigB", got[1].Config.Name)
			assert.Nil(t, got[1].Pattern)
		})
	}
}

func TestPipelineSkipsFailuresAndContinues(t *testing.T) {
	base := t.TempDir()
	first := filepath.Join(base, "first")
	second := filepath.Join(base, "second")

	addPlugin(t, first, "broken", `(name: "broken", bin: (path: `)
	addPlugin(t, first, "fine", descriptor("fine"))
	addPlugin(t, second, "later", descriptor("later"))

	roots := paths.Static{filepath.Join(base, "missing"), first, second}
	p := plugin.NewPipeline(roots, plugin.NewRONLoader(nil), plugin.WithConcurrency(2))

	want := []string{filepath.Join(first, "fine"), filepath.Join(second, "later")}
	assert.Equal(t, want, sourcesOf(p.LoadAll()))
	assert.Equal(t, want, sourcesOf(drain(p)))
}

func TestPipelineSyncAndAsyncAgree(t *testing.T) {
	base := t.TempDir()
	var roots paths.Static
	for r := range 3 {
		root := filepath.Join(base, fmt.Sprintf("root%d", r))
		roots = append(roots, root)
		for i := range 12 {
			name := fmt.Sprintf("p%02d", i)
			body := descriptor(name)
			if i%5 == 0 {
				body = "not ron at all {"
			}
			addPlugin(t, root, name, body)
		}
		addPlugin(t, root, "no-descriptor", "")
	}

	p := plugin.NewPipeline(roots, plugin.NewRONLoader(nil), plugin.WithConcurrency(4))
	sync := sourcesOf(p.LoadAll())
	async := sourcesOf(drain(p))

	assert.ElementsMatch(t, sync, async)
	assert.Equal(t, sync, async)
	assert.Len(t, sync, 3*(12-3))
}

func TestPipelineAsyncOrderIndependentOfConcurrency(t *testing.T) {
	base := t.TempDir()
	roots := paths.Static{filepath.Join(base, "a"), filepath.Join(base, "b")}
	for _, root := range roots {
		for i := range 10 {
			addPlugin(t, root, fmt.Sprintf("plugin-%d", i), descriptor(fmt.Sprintf("plugin-%d", i)))
		}
	}

	// Loads finish in a scrambled order; emission must not follow it.
	var n atomic.Int32
	ron := plugin.NewRONLoader(nil)
	jittery := plugin.LoaderFunc(func(source, desc string) (plugin.LoadedPlugin, bool) {
		time.Sleep(time.Duration(7-n.Add(1)%7) * time.Millisecond)
		if strings.HasSuffix(source, "-3") {
			return plugin.LoadedPlugin{}, false
		}
		return ron.Load(source, desc)
	})

	serial := sourcesOf(drain(plugin.NewPipeline(roots, jittery, plugin.WithConcurrency(1))))
	wide := sourcesOf(drain(plugin.NewPipeline(roots, jittery, plugin.WithConcurrency(8))))

	assert.Len(t, serial, 18)
	assert.Equal(t, serial, wide)
	for _, s := range serial[:9] {
		assert.True(t, strings.HasPrefix(s, roots[0]), "higher priority root first: %s", s)
	}
}

func TestPipelineLoaderSeesEveryCandidate(t *testing.T) {
	root := t.TempDir()
	good := addPlugin(t, root, "good", descriptor("good"))
	bad := addPlugin(t, root, "bad", descriptor("bad"))
	addPlugin(t, root, "ignored", "")

	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	cfg := &plugin.PluginConfig{Name: "good"}
	loader.EXPECT().
		Load(good, filepath.Join(good, plugin.DescriptorName)).
		Return(plugin.LoadedPlugin{Source: good, Config: cfg}, true).
		Times(2)
	loader.EXPECT().
		Load(bad, filepath.Join(bad, plugin.DescriptorName)).
		Return(plugin.LoadedPlugin{}, false).
		Times(2)

	p := plugin.NewPipeline(paths.Static{root}, loader, plugin.WithConcurrency(3))

	syncOut := p.LoadAll()
	require.Len(t, syncOut, 1)
	assert.Same(t, cfg, syncOut[0].Config)

	asyncOut := drain(p)
	require.Len(t, asyncOut, 1)
	assert.Same(t, cfg, asyncOut[0].Config)
}

func TestPipelineAsyncIsLazy(t *testing.T) {
	root := t.TempDir()
	for i := range 20 {
		addPlugin(t, root, fmt.Sprintf("p%d", i), descriptor(fmt.Sprintf("p%d", i)))
	}

	var calls atomic.Int32
	counting := plugin.LoaderFunc(func(source, desc string) (plugin.LoadedPlugin, bool) {
		calls.Add(1)
		return plugin.LoadedPlugin{Source: source, Config: &plugin.PluginConfig{}}, true
	})
	p := plugin.NewPipeline(paths.Static{root}, counting, plugin.WithConcurrency(2))

	seq := p.LoadAllAsync()
	assert.Zero(t, calls.Load(), "nothing runs before ranging")

	for range seq {
		break
	}
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestPipelineEmptyRoots(t *testing.T) {
	p := plugin.NewPipeline(paths.Static{}, plugin.NewRONLoader(nil))
	assert.Empty(t, p.LoadAll())
	assert.Empty(t, drain(p))
}

func TestWithConcurrency(t *testing.T) {
	loader := plugin.NewRONLoader(nil)
	assert.Equal(t, 5, plugin.NewPipeline(paths.Static{}, loader, plugin.WithConcurrency(5)).Concurrency())
	assert.GreaterOrEqual(t, plugin.NewPipeline(paths.Static{}, loader, plugin.WithConcurrency(0)).Concurrency(), 1)
}
