// Package log is the logging abstraction used by pmemkit packages.
//
// Pools, the transaction manager and the CLI log through the Logger
// interface so embedding applications can route events into whatever they
// already use. A zerolog adapter and a no-op logger are provided.
//
//	logger := log.NewZerologAdapter()
//	p, err := pool.Open(path, pool.Options{Layout: "app", Logger: logger})
//
// The default for every component is NoopLogger.
package log
