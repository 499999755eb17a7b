// Package templates provides project scaffolding templates.
//
// Each template is a small project with a client entry, a server entry and a
// pneumatic.json, ready for `pneumatic dev`.
//
// # Available Templates
//
//   - minimal: an echo server and a page that talks to it
//   - counter: server-side state, a timer and an onDispose hook
//
// # Usage
//
//	tmpl, err := templates.Get("counter")
//	if err != nil {
//	    return err
//	}
//	if err := tmpl.Create(afero.NewOsFs(), projectDir, cfg); err != nil {
//	    return err
//	}
//
// # Template Variables
//
//	{{.ProjectName}}  - Name of the project
//	{{.Description}}  - Project description
//	{{.Port}}         - Dev server port written to pneumatic.json
package templates
