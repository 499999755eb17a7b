package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langyo/React-frontback-scaffold/internal/config"
	"github.com/langyo/React-frontback-scaffold/internal/vfs"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestESBuild_CompilesThroughOverlay(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/clientEntry.tsx": `import { greet } from "./greet";
const el: string = greet("client");
console.log(el, process.env.NODE_ENV);
`,
		"src/greet.ts":       `export const greet = (who: string): string => "hello " + who;`,
		"src/serverEntry.ts": `console.log("server side", process.env.NODE_ENV);`,
	})

	for _, mode := range []string{config.ModeDevelopment, config.ModeProduction} {
		t.Run(mode, func(t *testing.T) {
			cfg := config.New()
			cfg.Root = dir
			cfg.Mode = mode

			overlay := vfs.New()
			p, err := NewPipeline(cfg, overlay, Options{Compiler: NewESBuild()})
			require.NoError(t, err)

			_, err = p.Run(context.Background())
			require.NoError(t, err)

			client, ok := p.Artifact(TargetClient)
			require.True(t, ok)
			assert.Contains(t, string(client), "hello ")
			assert.Contains(t, string(client), `"`+mode+`"`)
			if mode == config.ModeDevelopment {
				assert.Contains(t, string(client), "sourceMappingURL=data:")
			} else {
				assert.NotContains(t, string(client), "sourceMappingURL")
			}

			server, ok := p.Artifact(TargetServer)
			require.True(t, ok)
			assert.Contains(t, string(server), "server side")
			assert.Contains(t, string(server), `"development"`)
			assert.NotContains(t, string(server), `"production"`)
			assert.Contains(t, string(server), "sourceMappingURL=data:")

			_, err = os.Stat(filepath.Join(dir, "__client.bundle.js"))
			assert.True(t, os.IsNotExist(err), "bundle must stay in memory")
			_, err = os.Stat(filepath.Join(dir, "__client.ts"))
			assert.True(t, os.IsNotExist(err), "entry must stay in memory")
		})
	}
}

func TestESBuild_ReadsShadowedSource(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/main.ts": `console.log("from disk");`,
	})
	overlay := vfs.New()
	main := filepath.Join(dir, "src", "main.ts")
	require.NoError(t, overlay.Write(main, []byte(`console.log("from memory");`)))

	entry := filepath.Join(dir, "__client.ts")
	require.NoError(t, overlay.AddForwardingEntry(entry, main))

	res, err := NewESBuild().Compile(context.Background(), Job{
		Target:     TargetClient,
		Entry:      entry,
		Outfile:    filepath.Join(dir, "__client.bundle.js"),
		Platform:   PlatformBrowser,
		Mode:       config.ModeDevelopment,
		ResolveDir: dir,
		FS:         overlay,
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	out := string(res.Outputs[filepath.Join(dir, "__client.bundle.js")])
	assert.Contains(t, out, "from memory")
	assert.NotContains(t, out, "from disk")
}

func TestESBuild_ReportsErrors(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/clientEntry.tsx": `console.log("ok");`,
		"src/serverEntry.ts":  "const = ;\n",
	})
	cfg := config.New()
	cfg.Root = dir
	cfg.Mode = config.ModeDevelopment

	p, err := NewPipeline(cfg, vfs.New(), Options{Compiler: NewESBuild()})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, report.Errors)
	assert.Equal(t, 1, report.Errors[0].Line)
	assert.True(t, strings.HasSuffix(filepath.ToSlash(report.Errors[0].File), "src/serverEntry.ts"))

	_, ok := p.Artifact(TargetClient)
	assert.False(t, ok, "a failed server build must not install the client")
}

func TestLoaderFor(t *testing.T) {
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx", ".json", ".css", ".MTS"} {
		_, ok := loaderFor("a" + ext)
		assert.True(t, ok, ext)
	}
	_, ok := loaderFor("a.png")
	assert.False(t, ok)
}
