package engine

import "errors"

// ErrorKind classifies the recoverable failures reported through a
// ResultSink. Invariant violations are programming errors and panic instead.
type ErrorKind int

const (
	// ErrorKindBackendOpenFailed is a generic I/O or initialization
	// failure while opening a backing store.
	ErrorKindBackendOpenFailed ErrorKind = iota + 1

	// ErrorKindQuotaExceeded means the disk filled up while opening a
	// backing store.
	ErrorKindQuotaExceeded

	// ErrorKindDatabaseCreateFailed means the backing store opened but the
	// database instance could not be constructed.
	ErrorKindDatabaseCreateFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindBackendOpenFailed:
		return "backend open failed"
	case ErrorKindQuotaExceeded:
		return "quota exceeded"
	case ErrorKindDatabaseCreateFailed:
		return "database create failed"
	default:
		return "unknown"
	}
}

// ErrConnectionClosed is returned by data operations on a closed connection.
var ErrConnectionClosed = errors.New("connection is closed")
