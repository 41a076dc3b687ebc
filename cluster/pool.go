package cluster

import (
	"sync"
	"time"

	"rcproxy/lib/metrics"
	"rcproxy/resp/client"
)

// Pool holds exactly one BackendConn per backend endpoint this proxy
// talks to, created lazily on first use and kept open until Close.
//
// Grounded on chuimengdaoxizhou-go-redis/cluster/client_pool.go, which
// pools multiple *client.Client instances per peer via
// go-commons-pool/v2's generic object pool (borrow/return a
// connection for each relayed command). That shape doesn't fit here:
// spec.md requires strict per-backend reply ordering, which only
// holds if every request to one endpoint travels over the same
// connection. So this keeps a single BackendConn per address instead
// of a borrow/return pool of many — see DESIGN.md for why
// go-commons-pool/v2 itself wasn't dropped, just repurposed.
type Pool struct {
	mu    sync.RWMutex
	conns map[string]*client.BackendConn
	opts  client.Options
}

// NewPool returns an empty Pool. opts is applied to every BackendConn
// it dials.
func NewPool(opts client.Options) *Pool {
	if opts.OnReconnect == nil {
		opts.OnReconnect = func(addr string, err error) {
			if err != nil {
				metrics.IncrCounter("backend.reconnect.failure", 1)
				return
			}
			metrics.IncrCounter("backend.reconnect.success", 1)
		}
	}
	return &Pool{
		conns: make(map[string]*client.BackendConn),
		opts:  opts,
	}
}

// Get returns the BackendConn for addr, dialing it if this is the
// first request to that endpoint.
func (p *Pool) Get(addr string) (*client.BackendConn, error) {
	p.mu.RLock()
	c, ok := p.conns[addr]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok = p.conns[addr]; ok {
		return c, nil
	}
	c, err := client.Dial(addr, p.opts)
	if err != nil {
		return nil, err
	}
	p.conns[addr] = c
	return c, nil
}

// Remove closes and forgets the connection to addr, if any — used
// when a backend is dropped from the meta store entirely rather than
// just reconnecting.
func (p *Pool) Remove(addr string) {
	p.mu.Lock()
	c, ok := p.conns[addr]
	if ok {
		delete(p.conns, addr)
	}
	p.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Close closes every backend connection the pool has opened.
func (p *Pool) Close() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*client.BackendConn)
	p.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// DefaultOptions returns the proxy's default backend connection
// tuning: a bounded outstanding-request cap and a modest exponential
// backoff window.
func DefaultOptions(maxOutstanding int) client.Options {
	return client.Options{
		MaxOutstanding: maxOutstanding,
		MinBackoff:     50 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		DialTimeout:    3 * time.Second,
	}
}
