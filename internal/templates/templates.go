package templates

import (
	"bytes"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/spf13/afero"

	"github.com/langyo/React-frontback-scaffold/internal/config"
	"github.com/langyo/React-frontback-scaffold/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// Description is a short project description.
	Description string

	// Port is the dev server port. Zero uses the default.
	Port int
}

// Template represents a project template.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Files is a map of relative paths to file contents.
	Files map[string]string
}

// Available templates.
var templates = map[string]*Template{
	"minimal": minimalTemplate(),
	"counter": counterTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New("E142").
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: minimal, counter")
	}
	return tmpl, nil
}

// List returns all available template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create generates a project from the template in dir on fs. dir must be
// missing or empty.
func (t *Template) Create(fs afero.Fs, dir string, cfg Config) error {
	if cfg.Port == 0 {
		cfg.Port = config.DefaultPort
	}

	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return err
	}
	if exists {
		empty, err := afero.IsEmpty(fs, dir)
		if err != nil {
			return err
		}
		if !empty {
			return errors.New("E143").
				WithDetail(dir).
				WithSuggestion("Choose a new directory name")
		}
	}

	for relPath, content := range t.Files {
		tmpl, err := template.New(relPath).Parse(content)
		if err != nil {
			return errors.Newf(errors.CategoryCLI, "invalid template %s: %v", relPath, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, cfg); err != nil {
			return errors.Newf(errors.CategoryCLI, "template execute error %s: %v", relPath, err)
		}

		fullPath := filepath.Join(dir, relPath)
		if err := fs.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return err
		}
		if err := afero.WriteFile(fs, fullPath, buf.Bytes(), 0644); err != nil {
			return err
		}
	}

	return nil
}

const configFile = `{
  "mode": "development",
  "dev": {
    "port": {{.Port}}
  }
}
`

const gitignore = `node_modules/
__*.bundle.js
`

const readme = `# {{.ProjectName}}

{{.Description}}

## Development

` + "```" + `
pneumatic dev
` + "```" + `

Open http://localhost:{{.Port}}. Edit src/serverEntry.ts and the running
server logic is replaced after the next build; the open page keeps its
connection.
`

// minimalTemplate returns the minimal template.
func minimalTemplate() *Template {
	return &Template{
		Name:        "minimal",
		Description: "Echo server and a page that talks to it",
		Files: map[string]string{
			"pneumatic.json": configFile,
			".gitignore":     gitignore,
			"README.md":      readme,
			"src/clientEntry.tsx": `const socket = new WebSocket(` + "`ws://${location.host}/ws`" + `);
const out = document.createElement("pre");
document.getElementById("root")!.append(out);

socket.addEventListener("open", () => socket.send(JSON.stringify({ text: "hello from {{.ProjectName}}" })));
socket.addEventListener("message", (e) => {
  out.textContent += e.data + "\n";
});
`,
			"src/serverEntry.ts": `declare function receive(handler: (msg: { text: string }) => void): void;
declare function send(msg: unknown): boolean;

receive((msg) => {
  send({ echo: msg.text });
});
`,
		},
	}
}

// counterTemplate returns a template with server-side state.
func counterTemplate() *Template {
	return &Template{
		Name:        "counter",
		Description: "Server-side counter with a timer and cleanup hook",
		Files: map[string]string{
			"pneumatic.json": configFile,
			".gitignore":     gitignore,
			"README.md":      readme,
			"src/clientEntry.tsx": `const socket = new WebSocket(` + "`ws://${location.host}/ws`" + `);
const root = document.getElementById("root")!;
const label = document.createElement("h1");
const button = document.createElement("button");
label.textContent = "{{.ProjectName}}";
button.textContent = "+1";
root.append(label, button);

button.addEventListener("click", () => socket.send(JSON.stringify({ type: "increment" })));
socket.addEventListener("message", (e) => {
  const msg = JSON.parse(e.data) as { count: number; uptime: number };
  label.textContent = ` + "`{{.ProjectName}}: ${msg.count} (up ${msg.uptime}s)`" + `;
});
`,
			"src/serverEntry.ts": `import { Counter } from "./counter";

declare function receive(handler: (msg: { type: string }) => void): void;
declare function send(msg: unknown): boolean;
declare function onDispose(hook: () => void): void;

const counter = new Counter();

receive((msg) => {
  if (msg.type === "increment") {
    counter.increment();
  }
  send(counter.snapshot());
});

const timer = setInterval(() => send(counter.snapshot()), 1000);

onDispose(() => {
  clearInterval(timer);
  console.log("counter stopped at", counter.snapshot().count);
});
`,
			"src/counter.ts": `export class Counter {
  private count = 0;
  private readonly started = Date.now();

  increment(): void {
    this.count++;
  }

  snapshot(): { count: number; uptime: number } {
    return { count: this.count, uptime: Math.round((Date.now() - this.started) / 1000) };
  }
}
`,
		},
	}
}
