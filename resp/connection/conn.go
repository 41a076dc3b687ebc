// Package connection wraps one client net.Conn with the small bit of
// per-session state the router needs: which tenant is AUTHed and
// whether the one-shot ASKING flag is armed.
//
// Grounded on chuimengdaoxizhou-go-redis/resp/connection/conn.go,
// which wraps net.Conn with a waitingReply wait.Wait so Close can
// drain in-flight writes before tearing down the socket — kept
// verbatim. Its SelectDB/GetDBIndex pair (bound to the teacher's
// per-index local keyspace) is replaced with Tenant/SetTenant and
// Asking/SetAsking, since tenant selection here is by AUTH token, not
// numeric SELECT index.
package connection

import (
	"net"
	"sync"
	"time"

	"rcproxy/lib/sync/wait"
)

// Connection implements rcproxy/interface/resp.Connection.
type Connection struct {
	conn         net.Conn
	waitingReply wait.Wait
	mu           sync.Mutex
	tenant       string
	asking       bool
}

// NewConn wraps conn. The returned Connection has no tenant selected
// until SetTenant is called (e.g. from a successful AUTH).
func NewConn(conn net.Conn) *Connection {
	return &Connection{conn: conn}
}

func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Connection) Write(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	c.waitingReply.Add(1)
	defer c.waitingReply.Done()
	_, err := c.conn.Write(b)
	return err
}

func (c *Connection) Close() error {
	c.waitingReply.WaitWithTimeout(10 * time.Second)
	return c.conn.Close()
}

func (c *Connection) Tenant() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tenant
}

func (c *Connection) SetTenant(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenant = name
}

// Asking reports and clears the one-shot ASKING flag.
func (c *Connection) Asking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.asking
	c.asking = false
	return v
}

func (c *Connection) SetAsking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asking = true
}
