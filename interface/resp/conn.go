// Package resp defines the interfaces shared between the RESP codec,
// the session layer and the backend pool.
package resp

// Reply is anything that can be serialized as a RESP frame.
type Reply interface {
	ToBytes() []byte
}

// Connection is the session-facing view of a client socket: enough
// for command handlers to know which tenant and which one-shot flags
// are active without reaching into the TCP connection itself.
type Connection interface {
	RemoteAddr() string
	Close() error
	Write(b []byte) error

	// Tenant returns the name of the currently AUTHed tenant, or ""
	// before AUTH succeeds.
	Tenant() string
	SetTenant(name string)

	// Asking reports and consumes the one-shot ASKING flag: the
	// first call after ASKING returns true, every call thereafter
	// returns false until ASKING is sent again.
	Asking() bool
	SetAsking()
}
