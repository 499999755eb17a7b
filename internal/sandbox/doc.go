// Package sandbox runs compiled server bundles in embedded JavaScript
// runtimes.
//
// Every Install creates a new goja runtime on its own event loop. The bundle's
// top-level code runs exactly once, and it can only reach the host through
// the globals installed here:
//
//	console.log/info/warn/error/debug   structured log output
//	setTimeout/setInterval/clear*       timers on the instance's loop
//	require(path)                       modules under the project root
//	receive(fn)                         register the message handler
//	send(msg)                           send to the open browser connection
//	onDispose(fn)                       run when the instance is replaced
//	capabilities.version                the version of this set
//
// When top-level code finishes without throwing, the new instance becomes
// live and the bridge receiver is rebound to it. The previous instance then
// finishes the messages already queued for it, runs its onDispose hooks and
// has its loop terminated, which cancels its timers.
//
// When top-level code throws or runs past the install timeout, the new
// instance is discarded and the previous one keeps receiving messages.
package sandbox
