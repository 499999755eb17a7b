// Package dev provides the development server and hot reload functionality.
//
// This package implements:
//   - File watching with fsnotify
//   - Debounced, serialized rebuild triggers
//   - The HTTP surface serving the HTML shell and the client bundle
//   - The WebSocket surface connected to the running server logic
//
// # Architecture
//
// The development server consists of several components:
//
//   - Watcher: reports changes under the project root
//   - Debouncer: coalesces changes into one build per quiet period
//   - Pipeline (internal/build): compiles the client and server bundles
//   - Executor (internal/sandbox): runs the server bundle
//   - SocketServer: forwards browser messages through the bridge
//
// # Usage
//
//	srv, err := dev.NewServer(dev.ServerOptions{Config: cfg})
//	if err != nil {
//	    return err
//	}
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// # Routes
//
//	GET /          HTML shell (?debug=1 adds an in-page console)
//	GET /entry     client bundle, 503 until the first successful build
//	GET /ws        WebSocket (also accepted on / with an Upgrade header)
//	GET /healthz   JSON status of the last build and the sandbox
//	GET /metrics   Prometheus metrics
//
// Everything else goes to dev.proxy when it is set and 404s otherwise.
//
// # Messages
//
// Every WebSocket text frame must be a JSON value. It is decoded and handed
// to the handler the server bundle registered with receive(). Frames that are
// not JSON are logged and dropped; the connection stays open.
package dev
