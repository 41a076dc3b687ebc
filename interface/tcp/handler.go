// Package tcp defines the handler contract the Listener (C9) hands
// accepted connections to, mirroring chuimengdaoxizhou-go-redis's own
// interface/tcp package (not present in the retrieval pack, so
// rebuilt here from how tcp/server.go uses it).
package tcp

import (
	"context"
	"net"
)

// Handler processes one accepted connection for its entire lifetime
// and is closed once, at shutdown, to release every connection it
// still owns.
type Handler interface {
	Handle(ctx context.Context, conn net.Conn)
	Close() error
}
