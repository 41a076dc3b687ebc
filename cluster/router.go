// Command routing — given a tenant and a parsed command, decide
// whether to answer locally, forward to a backend, redirect the
// client, or error out. Grounded on
// chuimengdaoxizhou-go-redis/cluster/router.go and
// database/command.go's shape (a static name → handler table), but
// the table here maps to key-extraction rules and a routing decision
// instead of directly to a local execution function, since this
// proxy never executes most commands itself.
package cluster

import (
	"errors"
	"strconv"
	"strings"

	"rcproxy/interface/resp"
	"rcproxy/resp/reply"
)

// DecisionKind classifies what a Router.Route call decided to do.
type DecisionKind int

const (
	// DecisionReply means Reply is already the final answer — either
	// a genuinely local command, an error, or a redirect.
	DecisionReply DecisionKind = iota
	// DecisionForward means the request must be sent to Backend.
	DecisionForward
)

// Decision is the result of routing one command.
type Decision struct {
	Kind    DecisionKind
	Reply   resp.Reply
	Backend *Node // set only when Kind == DecisionForward
}

// keySpec describes where a command's key(s) live in its argument
// list. First and Step are 1-based offsets into args (args[0] is the
// command name). Last == -1 means "to the end of args".
type keySpec struct {
	First, Last, Step int
}

var commandTable = map[string]keySpec{
	"GET": {1, 1, 1}, "SET": {1, 1, 1}, "SETNX": {1, 1, 1}, "SETEX": {1, 1, 1},
	"GETSET": {1, 1, 1}, "APPEND": {1, 1, 1}, "STRLEN": {1, 1, 1},
	"INCR": {1, 1, 1}, "DECR": {1, 1, 1}, "INCRBY": {1, 1, 1}, "DECRBY": {1, 1, 1},
	"EXPIRE": {1, 1, 1}, "TTL": {1, 1, 1}, "PERSIST": {1, 1, 1}, "TYPE": {1, 1, 1},
	"HGET": {1, 1, 1}, "HSET": {1, 1, 1}, "HDEL": {1, 1, 1}, "HGETALL": {1, 1, 1},
	"LPUSH": {1, 1, 1}, "RPUSH": {1, 1, 1}, "LPOP": {1, 1, 1}, "RPOP": {1, 1, 1},
	"LRANGE": {1, 1, 1}, "SADD": {1, 1, 1}, "SREM": {1, 1, 1}, "SMEMBERS": {1, 1, 1},
	"ZADD": {1, 1, 1}, "ZRANGE": {1, 1, 1}, "ZSCORE": {1, 1, 1},
	"EXISTS": {1, -1, 1}, "DEL": {1, -1, 1}, "MGET": {1, -1, 1},
	"MSET": {1, -1, 2}, "MSETNX": {1, -1, 2},
}

// localCommands are handled entirely inside the Session/Router and
// never reach the command table or a backend.
var localCommands = map[string]bool{
	"PING": true, "QUIT": true, "SELECT": true, "AUTH": true, "ASKING": true,
	"CLUSTER": true, "UMCTL": true,
}

// Router ties the meta Store, the Slot Hasher and the Backend Pool
// together to answer Route for every incoming command.
type Router struct {
	store       *Store
	pool        *Pool
	adminTenant string
}

// NewRouter returns a Router reading from store and forwarding
// through pool. adminTenant names the tenant UMCTL is restricted to
// and that an unauthenticated data command is evaluated against.
func NewRouter(store *Store, pool *Pool, adminTenant string) *Router {
	if adminTenant == "" {
		adminTenant = "admin"
	}
	return &Router{store: store, pool: pool, adminTenant: adminTenant}
}

// Route decides what to do with args on behalf of conn. asking
// reports whether the session's one-shot ASKING flag is set for this
// command (the caller is responsible for clearing it after).
func (r *Router) Route(conn resp.Connection, args [][]byte, asking bool) Decision {
	if len(args) == 0 {
		return immediate(reply.MakeProtocolErrReply("empty command"))
	}
	name := strings.ToUpper(string(args[0]))

	if localCommands[name] {
		return r.routeLocal(conn, name, args)
	}

	spec, ok := commandTable[name]
	if !ok {
		return immediate(reply.MakeErrReply("ERR command not supported: " + name))
	}

	keys, err := extractKeys(args, spec)
	if err != nil {
		return immediate(reply.MakeErrReply("ERR " + err.Error()))
	}
	if len(keys) == 0 {
		return immediate(reply.MakeErrReply("ERR command not supported: " + name))
	}

	slot := Slot(keys[0])
	for _, k := range keys[1:] {
		if Slot(k) != slot {
			return immediate(reply.MakeCrossSlotReply())
		}
	}

	tenantName := conn.Tenant()
	if tenantName == "" {
		tenantName = r.adminTenant
	}
	snap := r.store.Snapshot()
	tenant := snap.Tenant(tenantName)
	if tenant == nil {
		return immediate(reply.MakeErrReply("ERR db not found: " + tenantName))
	}

	return r.routeBySlot(tenant, slot, asking)
}

func (r *Router) routeBySlot(tenant *Tenant, slot int, asking bool) Decision {
	if node, rng, ok := tenant.LocalOwner(slot); ok {
		switch rng.Tag {
		case TagStable:
			return Decision{Kind: DecisionForward, Backend: &node}
		case TagImporting:
			if asking {
				return Decision{Kind: DecisionForward, Backend: &node}
			}
			return immediate(reply.MakeMovedReply(slot, rng.PeerAddr))
		case TagMigrating:
			// Always forwarded to the local node. Whether the key is
			// still present locally is not checked, so no ASK
			// redirect is ever produced for a migrating range.
			return Decision{Kind: DecisionForward, Backend: &node}
		}
	}
	if peer, _, ok := tenant.PeerOwner(slot); ok {
		return immediate(reply.MakeMovedReply(slot, peer.Addr))
	}
	return immediate(reply.MakeErrReply("ERR slot " + strconv.Itoa(slot) + " not covered"))
}

func (r *Router) routeLocal(conn resp.Connection, name string, args [][]byte) Decision {
	switch name {
	case "PING":
		return immediate(reply.MakePongReply())
	case "QUIT":
		return immediate(reply.MakeOkReply())
	case "SELECT":
		if len(args) == 2 && string(args[1]) == "0" {
			return immediate(reply.MakeOkReply())
		}
		return immediate(reply.MakeErrReply("ERR SELECT is only supported for index 0"))
	case "ASKING":
		conn.SetAsking()
		return immediate(reply.MakeOkReply())
	case "AUTH":
		if len(args) != 2 {
			return immediate(reply.MakeErrReply("ERR wrong number of arguments for AUTH"))
		}
		name := string(args[1])
		if r.store.Snapshot().Tenant(name) == nil {
			return immediate(reply.MakeErrReply("ERR no such database"))
		}
		conn.SetTenant(name)
		return immediate(reply.MakeOkReply())
	case "CLUSTER":
		return immediate(r.routeCluster(conn, args))
	case "UMCTL":
		tenantName := conn.Tenant()
		if !IsAdmin(tenantName, r.adminTenant) {
			return immediate(reply.MakeErrReply("ERR UMCTL requires the admin tenant"))
		}
		return immediate(HandleUMCTL(r.store, args))
	default:
		return immediate(reply.MakeErrReply("ERR command not supported: " + name))
	}
}

func (r *Router) routeCluster(conn resp.Connection, args [][]byte) resp.Reply {
	if len(args) < 2 {
		return reply.MakeErrReply("ERR wrong number of arguments for CLUSTER")
	}
	tenantName := conn.Tenant()
	if tenantName == "" {
		tenantName = r.adminTenant
	}
	tenant := r.store.Snapshot().Tenant(tenantName)
	switch strings.ToUpper(string(args[1])) {
	case "NODES":
		return ClusterNodes(tenant)
	case "SLOTS":
		return ClusterSlots(tenant)
	case "INFO":
		return ClusterInfo(tenant)
	default:
		return reply.MakeErrReply("ERR unknown CLUSTER subcommand")
	}
}

func extractKeys(args [][]byte, spec keySpec) ([][]byte, error) {
	last := spec.Last
	if last == -1 {
		last = len(args) - 1
	}
	if spec.First > len(args)-1 || last > len(args)-1 {
		return nil, errWrongArity
	}
	var keys [][]byte
	for i := spec.First; i <= last; i += spec.Step {
		keys = append(keys, args[i])
	}
	return keys, nil
}

var errWrongArity = errors.New("wrong number of arguments")

func immediate(r resp.Reply) Decision {
	return Decision{Kind: DecisionReply, Reply: r}
}
