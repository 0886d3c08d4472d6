// Package services implements the process-wide services of the workbench
// server: the registry of open page sessions and the health checks.
//
// A page session is a workbench.Workbench created by the registry's factory
// on GET / and looked up by id on every later request. Sessions idle for
// longer than the configured TTL are closed by RunSweeper:
//
//	registry := services.NewSessionRegistry(cfg.Session, factory, logger, metrics)
//	g.Go(func() error { return registry.RunSweeper(ctx) })
package services
