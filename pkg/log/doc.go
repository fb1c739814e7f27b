/*
Package log provides structured logging for kestrel using zerolog.

A single package-level Logger is configured once via Init and used from
every other package. Component loggers (WithComponent, WithNodeID,
WithFrameworkID, WithExecutorID, WithTaskID) attach the identifying field a
caller cares about without repeating it on every call site.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	l := log.WithComponent("reliability").With().
		Str("framework_id", fid).Logger()
	l.Warn().Str("uuid", u).Msg("status update not yet acked, retrying")

Fatal logs at fatal level and then calls os.Exit(1) via zerolog's own
Fatal hook; use it only for conditions the agent cannot recover from.
*/
package log
