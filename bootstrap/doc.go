// Package bootstrap runs the lifecycle of a reactkit process.
//
// NewApp validates the typed configuration and initializes logging.
// Components registered on the App (worker pools, hot streams, the stream
// gateway) are started in order, configure callbacks wire pipelines onto
// them, and shutdown on SIGINT or SIGTERM stops everything in reverse order.
//
//	app, err := bootstrap.NewApp(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = app.RegisterComponent(pool)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap
