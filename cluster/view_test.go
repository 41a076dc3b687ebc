package cluster

import (
	"strings"
	"testing"

	"rcproxy/resp/reply"
)

func testTenant() *Tenant {
	return &Tenant{
		Name:  "mydb",
		Epoch: 3,
		LocalNodes: []Node{
			{Addr: "127.0.0.1:7000", Ranges: []SlotRange{{Start: 0, End: 8191, Tag: TagStable}}},
		},
		PeerNodes: []Node{
			{Addr: "127.0.0.1:7001", Ranges: []SlotRange{{Start: 8192, End: 16383, Tag: TagStable}}},
		},
	}
}

func TestClusterNodesListsLocalAndPeerNodes(t *testing.T) {
	body := string(ClusterNodes(testTenant()).(*reply.BulkReply).Arg)
	if !strings.Contains(body, "127.0.0.1:7000@7000") {
		t.Fatalf("missing local node line: %q", body)
	}
	if !strings.Contains(body, "127.0.0.1:7001@7001") {
		t.Fatalf("missing peer node line: %q", body)
	}
	if strings.Count(body, "\n") != 2 {
		t.Fatalf("expected 2 lines, got: %q", body)
	}
}

func TestClusterNodesNilTenant(t *testing.T) {
	body := string(ClusterNodes(nil).(*reply.BulkReply).Arg)
	if body != "" {
		t.Fatalf("expected empty body for nil tenant, got %q", body)
	}
}

func TestNodeIDFixedWidth(t *testing.T) {
	id := nodeID("mydb", "127.0.0.1:7000")
	if len(id) != nodeIDWidth {
		t.Fatalf("node id length = %d, want %d: %q", len(id), nodeIDWidth, id)
	}
	longID := nodeID("a-very-long-tenant-name-that-overflows", "127.0.0.1:70000000")
	if len(longID) != nodeIDWidth {
		t.Fatalf("truncated node id length = %d, want %d", len(longID), nodeIDWidth)
	}
}

func TestClusterSlotsShape(t *testing.T) {
	r := ClusterSlots(testTenant())
	arr, ok := r.(*reply.ArrayReply)
	if !ok {
		t.Fatalf("expected array reply, got %T", r)
	}
	if len(arr.Elements) != 2 {
		t.Fatalf("got %d slot entries, want 2", len(arr.Elements))
	}
	entry, ok := arr.Elements[0].(*reply.ArrayReply)
	if !ok || len(entry.Elements) != 3 {
		t.Fatalf("slot entry malformed: %#v", arr.Elements[0])
	}
	start, ok := entry.Elements[0].(*reply.IntReply)
	if !ok {
		t.Fatalf("slot entry start not an int reply: %#v", entry.Elements[0])
	}
	if start.Code != 0 {
		t.Fatalf("first slot range start = %d, want 0", start.Code)
	}
	nodeInfo, ok := entry.Elements[2].(*reply.ArrayReply)
	if !ok || len(nodeInfo.Elements) != 3 {
		t.Fatalf("node info malformed: %#v", entry.Elements[2])
	}
}

func TestClusterSlotsEmptyTenant(t *testing.T) {
	r := ClusterSlots(&Tenant{Name: "empty", Epoch: 1})
	if _, ok := r.(*reply.EmptyMultiBulkReply); !ok {
		t.Fatalf("expected empty multi bulk reply, got %T", r)
	}
}

func TestClusterInfoReflectsAssignedSlots(t *testing.T) {
	body := string(ClusterInfo(testTenant()).(*reply.BulkReply).Arg)
	if !strings.Contains(body, "cluster_state:ok") {
		t.Fatalf("expected cluster_state:ok, got %q", body)
	}
	if !strings.Contains(body, "cluster_slots_assigned:8192") {
		t.Fatalf("expected 8192 assigned slots, got %q", body)
	}
	if !strings.Contains(body, "cluster_known_nodes:2") {
		t.Fatalf("expected 2 known nodes, got %q", body)
	}
	if !strings.Contains(body, "cluster_current_epoch:3") {
		t.Fatalf("expected epoch 3, got %q", body)
	}
}

func TestClusterInfoFailStateWithNoLocalSlots(t *testing.T) {
	body := string(ClusterInfo(&Tenant{Name: "empty", Epoch: 1}).(*reply.BulkReply).Arg)
	if !strings.Contains(body, "cluster_state:fail") {
		t.Fatalf("expected cluster_state:fail for unassigned tenant, got %q", body)
	}
}

func TestClusterInfoNilTenant(t *testing.T) {
	body := string(ClusterInfo(nil).(*reply.BulkReply).Arg)
	if !strings.Contains(body, "cluster_state:fail") {
		t.Fatalf("expected cluster_state:fail for nil tenant, got %q", body)
	}
}
