// CLUSTER NODES / CLUSTER SLOTS / CLUSTER INFO synthesis from the
// current MetaSnapshot. No file in the retrieval pack did anything
// like this (the teacher has no cluster-bus concept at all), so this
// is new code following the RESP reply shapes Redis Cluster itself
// defines, using the same reply.* types C1 already provides.
package cluster

import (
	"fmt"
	"strings"

	"rcproxy/interface/resp"
	"rcproxy/resp/reply"
)

const nodeIDWidth = 40

// nodeID derives the fixed-width id CLUSTER NODES prints for one
// node. spec.md §4.8 documents the format as "<tenant>____<host:port>"
// padded/truncated to 40 characters with underscores; flagged in
// SPEC_FULL.md as an open question whether downstream tooling expects
// a true hex id instead. Kept as documented since no control-plane
// contract in the pack says otherwise.
// TODO: revisit if a downstream tool ever rejects a non-hex node id.
func nodeID(tenant, addr string) string {
	id := tenant + "____" + addr
	if len(id) >= nodeIDWidth {
		return id[:nodeIDWidth]
	}
	return id + strings.Repeat("_", nodeIDWidth-len(id))
}

func allNodes(t *Tenant) []Node {
	nodes := make([]Node, 0, len(t.LocalNodes)+len(t.PeerNodes))
	nodes = append(nodes, t.LocalNodes...)
	nodes = append(nodes, t.PeerNodes...)
	return nodes
}

// ClusterNodes renders the CLUSTER NODES text for tenant.
func ClusterNodes(t *Tenant) resp.Reply {
	if t == nil {
		return reply.MakeBulkReply([]byte(""))
	}
	var b strings.Builder
	for _, n := range allNodes(t) {
		id := nodeID(t.Name, n.Addr)
		var ranges []string
		for _, r := range n.Ranges {
			ranges = append(ranges, r.String())
		}
		fmt.Fprintf(&b, "%s %s@%s master - 0 0 %d connected %s\n",
			id, n.Addr, busPort(n.Addr), t.Epoch, strings.Join(ranges, " "))
	}
	return reply.MakeBulkReply([]byte(b.String()))
}

// busPort returns the same port as addr: the proxy has no separate
// cluster bus, so bus-port == service-port (spec.md §4.8).
func busPort(addr string) string {
	idx := strings.LastIndexByte(addr, ':')
	if idx < 0 {
		return addr
	}
	return addr[idx+1:]
}

// ClusterSlots renders the CLUSTER SLOTS array for tenant: one
// [start, end, [host, port, id]] entry per slot range.
func ClusterSlots(t *Tenant) resp.Reply {
	if t == nil {
		return &reply.EmptyMultiBulkReply{}
	}
	var entries []resp.Reply
	for _, n := range allNodes(t) {
		host, port := splitHostPort(n.Addr)
		id := nodeID(t.Name, n.Addr)
		for _, r := range n.Ranges {
			entries = append(entries, reply.MakeArrayReply([]resp.Reply{
				reply.MakeIntReply(int64(r.Start)),
				reply.MakeIntReply(int64(r.End)),
				reply.MakeArrayReply([]resp.Reply{
					reply.MakeBulkReply([]byte(host)),
					reply.MakeBulkReply([]byte(port)),
					reply.MakeBulkReply([]byte(id)),
				}),
			}))
		}
	}
	if len(entries) == 0 {
		return &reply.EmptyMultiBulkReply{}
	}
	return reply.MakeArrayReply(entries)
}

func splitHostPort(addr string) (host, port string) {
	idx := strings.LastIndexByte(addr, ':')
	if idx < 0 {
		return addr, ""
	}
	return addr[:idx], addr[idx+1:]
}

// ClusterInfo renders a minimal CLUSTER INFO block for tenant.
func ClusterInfo(t *Tenant) resp.Reply {
	state := "ok"
	slotsAssigned := 0
	epoch := uint64(0)
	if t != nil {
		epoch = t.Epoch
		for _, n := range t.LocalNodes {
			for _, r := range n.Ranges {
				slotsAssigned += r.End - r.Start + 1
			}
		}
		if slotsAssigned == 0 {
			state = "fail"
		}
	} else {
		state = "fail"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "cluster_state:%s\r\n", state)
	fmt.Fprintf(&b, "cluster_slots_assigned:%d\r\n", slotsAssigned)
	fmt.Fprintf(&b, "cluster_slots_ok:%d\r\n", slotsAssigned)
	fmt.Fprintf(&b, "cluster_known_nodes:%d\r\n", countNodes(t))
	fmt.Fprintf(&b, "cluster_current_epoch:%d\r\n", epoch)
	return reply.MakeBulkReply([]byte(b.String()))
}

func countNodes(t *Tenant) int {
	if t == nil {
		return 0
	}
	return len(t.LocalNodes) + len(t.PeerNodes)
}
