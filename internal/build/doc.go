// Package build compiles the client and server bundles of a project.
//
// A build cycle compiles two targets through a Compiler:
//
//   - client: the browser bundle served at /entry
//   - server: the host bundle executed by the sandbox
//
// Each target starts from a synthetic entry module that lives only in the
// overlay filesystem and forwards to the real source file. Both targets are
// compiled together, and their artifacts are installed into the overlay only
// when both succeed. A failing cycle leaves the previous artifacts and the
// running server logic in place.
//
// # Usage
//
//	overlay := vfs.New()
//	p, err := build.NewPipeline(cfg, overlay, build.Options{
//	    Compiler: build.NewESBuild(),
//	    Sandbox:  exec,
//	})
//	if err != nil {
//	    return err
//	}
//	report, err := p.Run(ctx)
//
// # Artifacts
//
// Entries and artifacts sit next to each other in the project root but never
// reach disk:
//
//	<root>/__client.ts          import "<root>/src/clientEntry.tsx";
//	<root>/__server.ts          import "<root>/src/serverEntry.ts";
//	<root>/__client.bundle.js   served at /entry
//	<root>/__server.bundle.js   executed by the sandbox
package build
