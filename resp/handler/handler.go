// Package handler adapts a cluster.Router into the
// interface/tcp.Handler contract the Listener drives: one Handle call
// per accepted connection, wrapping it in a connection.Connection and
// a cluster.Session for the connection's lifetime.
//
// Grounded on chuimengdaoxizhou-go-redis/resp/handler/handler.go,
// whose RespHandler tracked active connections in a sync.Map and
// closed them all on shutdown — the same tracking is kept here as a
// mutex-guarded map; its direct
// db.Exec(client, args) dispatch is replaced by handing the
// connection to a cluster.Session, which owns the routing/pipeline
// logic that used to live inline in the Handle loop.
package handler

import (
	"context"
	"net"
	"sync"

	"rcproxy/cluster"
	"rcproxy/lib/logger"
	"rcproxy/resp/connection"
)

// RespHandler implements rcproxy/interface/tcp.Handler.
type RespHandler struct {
	router      *cluster.Router
	pipelineCap int

	mu      sync.Mutex
	active  map[*connection.Connection]struct{}
	closing bool
}

// MakeHandler returns a RespHandler that routes through router,
// bounding each session's in-flight pipeline depth at pipelineCap
// (zero means unbounded).
func MakeHandler(router *cluster.Router, pipelineCap int) *RespHandler {
	return &RespHandler{
		router:      router,
		pipelineCap: pipelineCap,
		active:      make(map[*connection.Connection]struct{}),
	}
}

func (h *RespHandler) Handle(ctx context.Context, conn net.Conn) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	client := connection.NewConn(conn)
	h.active[client] = struct{}{}
	h.mu.Unlock()

	log := logger.Session(client.RemoteAddr())
	log.Info("connection accepted")

	session := cluster.NewSession(client, h.router, h.pipelineCap)
	session.Serve(conn)

	h.mu.Lock()
	delete(h.active, client)
	h.mu.Unlock()
	_ = client.Close()
	log.Info("connection closed")
}

func (h *RespHandler) Close() error {
	logger.Info("handler shutting down")
	h.mu.Lock()
	h.closing = true
	clients := make([]*connection.Connection, 0, len(h.active))
	for c := range h.active {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.Close()
	}
	return nil
}
