package engine

// ResultSink receives the outcome of one factory request. Exactly one of
// OnSuccess or OnError is invoked, exactly once per request. Sinks are
// always invoked outside the factory's lock, so a sink may call back into
// the factory.
//
// The success value depends on the operation: *Connection for Open, the
// pre-delete version (int64) for DeleteDatabase, []string for
// GetDatabaseNames.
type ResultSink interface {
	OnSuccess(value any)
	OnError(kind ErrorKind, message string)
}

// ConnectionCallbacks receives events delivered to an open connection.
type ConnectionCallbacks interface {
	// OnForcedClose fires when the connection is evicted, for example by a
	// forced database close or a delete while the connection was open.
	OnForcedClose()

	// OnVersionChange fires on other connections when one connection
	// upgrades the database version.
	OnVersionChange(oldVersion, newVersion int64)
}
