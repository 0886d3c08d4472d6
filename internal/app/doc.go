// Package app wires the workbench server together and runs it.
//
// # Initialization Flow
//
//	1. The caller loads configuration and builds the logger
//	2. OpenTelemetry providers and the workbench metrics are created
//	3. The websocket hub, the engine client and the session registry are built
//	4. Every new session gets a workbench whose notifications go to the log
//	   and to the session's stream
//	5. The router and the HTTP server are configured
//
// # Usage
//
//	app, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return app.Run()
//
// # Graceful Shutdown
//
// Serve runs the HTTP server, the hub loop and the session sweeper in one
// errgroup. When the context is cancelled the server drains active requests
// within the shutdown timeout, every stream is closed and telemetry is
// flushed. The package never calls os.Exit.
package app
