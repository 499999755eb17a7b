// Package errors provides structured, coded errors for the pneumatic dev server.
//
// Every failure the core can contain has a registered code. Codes map to a
// category, a short message and a longer explanation, so that log lines and
// terminal output stay consistent regardless of where the error surfaced.
//
// # Error Categories
//
//   - watch: filesystem watcher failures
//   - compile: aggregated compiler diagnostics and compiler crashes
//   - sandbox: failures while installing or running server logic
//   - protocol: malformed or undeliverable connection messages
//   - config: configuration loading and validation
//   - cli: command line usage errors
//
// # Usage
//
//	err := errors.New("E201").
//	    WithDetail(diagnostics).
//	    WithLocation("src/serverEntry.ts", 12, 4)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E201: Build failed
//	//
//	//   src/serverEntry.ts:12:4
//	//   ...
//
// None of these errors is fatal to the host process; callers log them and keep
// the previously installed state.
package errors
