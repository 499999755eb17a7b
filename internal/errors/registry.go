package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Watch Errors (E100-E119)
	// ============================================

	"E101": {
		Category: CategoryWatch,
		Message:  "File watcher failed",
		Detail:   "The filesystem watcher reported an error. Changes may go unnoticed until the watcher recovers.",
	},
	"E102": {
		Category: CategoryWatch,
		Message:  "Watch path could not be added",
		Detail:   "A directory under the project root could not be registered with the watcher.",
	},

	// ============================================
	// Configuration Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The configuration file could not be parsed.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Entry module not found",
		Detail:   "A configured client or server entry module does not exist under the project root.",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		Detail:   "The configured port is out of range.",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Build failed",
		Detail:   "One or more build targets failed to compile.",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Project root not found",
		Detail:   "The project root directory does not exist.",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Template not found",
		Detail:   "The requested project template does not exist.",
	},
	"E143": {
		Category: CategoryCLI,
		Message:  "Target directory not empty",
		Detail:   "A new project can only be created in an empty or missing directory.",
	},

	// ============================================
	// Compile Errors (E200-E219)
	// ============================================

	"E201": {
		Category: CategoryCompile,
		Message:  "Compilation failed",
		Detail:   "The compiler reported errors. Previously installed artifacts stay in effect.",
	},
	"E202": {
		Category: CategoryCompile,
		Message:  "Compiler crashed",
		Detail:   "The compiler invocation failed unexpectedly. Previously installed artifacts stay in effect.",
	},
	"E203": {
		Category: CategoryCompile,
		Message:  "Compiler produced no output",
		Detail:   "The compiler reported success but did not produce the expected artifact.",
	},

	// ============================================
	// Sandbox Errors (E300-E319)
	// ============================================

	"E301": {
		Category: CategorySandbox,
		Message:  "Server logic failed to start",
		Detail:   "The compiled server artifact threw during top-level execution. The previous instance keeps handling messages.",
	},
	"E302": {
		Category: CategorySandbox,
		Message:  "Server logic install timed out",
		Detail:   "Top-level execution of the server artifact did not finish in time and was interrupted.",
	},
	"E303": {
		Category: CategorySandbox,
		Message:  "Server callback failed",
		Detail:   "A message handler, timer or dispose hook threw inside the sandbox.",
	},

	// ============================================
	// Protocol Errors (E400-E419)
	// ============================================

	"E401": {
		Category: CategoryProtocol,
		Message:  "Malformed message",
		Detail:   "An inbound connection payload was not valid JSON and was dropped.",
	},
	"E402": {
		Category: CategoryProtocol,
		Message:  "No open connection",
		Detail:   "A message was sent while no connection was open.",
	},
	"E403": {
		Category: CategoryProtocol,
		Message:  "Connection write failed",
		Detail:   "Writing to the open connection failed.",
	},
}
