package cluster

import (
	"strings"
	"testing"

	"rcproxy/resp/reply"
)

func mustArgsControl(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func TestHandleUMCTLSetdbInstallsTenant(t *testing.T) {
	store := NewStore()
	args := mustArgsControl("UMCTL", "SETDB", "1", "NOFLAGS",
		"mydb", "127.0.0.1:7000", "0-100", "101-16383")
	r := HandleUMCTL(store, args)
	if _, ok := r.(*reply.StatusReply); !ok {
		t.Fatalf("expected OK status reply, got %T: %s", r, r.ToBytes())
	}

	snap := store.Snapshot()
	tenant := snap.Tenant("mydb")
	if tenant == nil {
		t.Fatal("tenant mydb not installed")
	}
	if tenant.Epoch != 1 {
		t.Fatalf("epoch = %d, want 1", tenant.Epoch)
	}
	if len(tenant.LocalNodes) != 1 || len(tenant.LocalNodes[0].Ranges) != 2 {
		t.Fatalf("unexpected local nodes: %+v", tenant.LocalNodes)
	}
}

func TestHandleUMCTLSetpeerPreservesLocalNodes(t *testing.T) {
	store := NewStore()
	store.Install(&Tenant{
		Name:  "mydb",
		Epoch: 1,
		LocalNodes: []Node{
			{Addr: "127.0.0.1:7000", Ranges: []SlotRange{{Start: 0, End: 16383, Tag: TagStable}}},
		},
	})

	args := mustArgsControl("UMCTL", "SETPEER", "2", "NOFLAGS",
		"mydb", "127.0.0.1:7001", "0-16383")
	r := HandleUMCTL(store, args)
	if _, ok := r.(*reply.StatusReply); !ok {
		t.Fatalf("expected OK, got %T: %s", r, r.ToBytes())
	}

	tenant := store.Snapshot().Tenant("mydb")
	if len(tenant.LocalNodes) != 1 {
		t.Fatalf("local nodes lost on SETPEER: %+v", tenant.LocalNodes)
	}
	if len(tenant.PeerNodes) != 1 || tenant.PeerNodes[0].Addr != "127.0.0.1:7001" {
		t.Fatalf("peer nodes not installed: %+v", tenant.PeerNodes)
	}
}

func TestHandleUMCTLStaleEpochRejected(t *testing.T) {
	store := NewStore()
	args := mustArgsControl("UMCTL", "SETDB", "5", "NOFLAGS", "mydb", "127.0.0.1:7000", "0-16383")
	if r := HandleUMCTL(store, args); r.(*reply.StatusReply) == nil {
		t.Fatalf("setup install failed: %s", HandleUMCTL(store, args).ToBytes())
	}

	stale := mustArgsControl("UMCTL", "SETDB", "5", "NOFLAGS", "mydb", "127.0.0.1:7000", "0-16383")
	r := HandleUMCTL(store, stale)
	if _, ok := r.(*reply.StandardErrReply); !ok {
		t.Fatalf("expected error reply for stale epoch, got %T: %s", r, r.ToBytes())
	}
}

func TestHandleUMCTLMigratingImportingTags(t *testing.T) {
	store := NewStore()
	args := mustArgsControl("UMCTL", "SETDB", "1", "NOFLAGS",
		"mydb", "127.0.0.1:7000",
		"0-100{MIGRATING/127.0.0.1:7001}",
		"101-200{IMPORTING/127.0.0.1:7002}",
		"201-16383")
	r := HandleUMCTL(store, args)
	if _, ok := r.(*reply.StatusReply); !ok {
		t.Fatalf("expected OK, got %T: %s", r, r.ToBytes())
	}

	ranges := store.Snapshot().Tenant("mydb").LocalNodes[0].Ranges
	if len(ranges) != 3 {
		t.Fatalf("got %d ranges, want 3", len(ranges))
	}
	if ranges[0].Tag != TagMigrating || ranges[0].PeerAddr != "127.0.0.1:7001" {
		t.Fatalf("range 0 not parsed as migrating: %+v", ranges[0])
	}
	if ranges[1].Tag != TagImporting || ranges[1].PeerAddr != "127.0.0.1:7002" {
		t.Fatalf("range 1 not parsed as importing: %+v", ranges[1])
	}
	if ranges[2].Tag != TagStable {
		t.Fatalf("range 2 not stable: %+v", ranges[2])
	}
}

func TestHandleUMCTLMalformedRangeRejected(t *testing.T) {
	store := NewStore()
	args := mustArgsControl("UMCTL", "SETDB", "1", "NOFLAGS", "mydb", "127.0.0.1:7000", "abc-def")
	r := HandleUMCTL(store, args)
	if _, ok := r.(*reply.StandardErrReply); !ok {
		t.Fatalf("expected error for malformed range, got %T: %s", r, r.ToBytes())
	}
}

func TestHandleUMCTLMultiTenantAtomicFailure(t *testing.T) {
	store := NewStore()
	store.Install(&Tenant{Name: "a", Epoch: 3})

	// a's epoch (3) is not newer, so the whole batch (a and b) must be rejected.
	args := mustArgsControl("UMCTL", "SETDB", "3", "NOFLAGS",
		"a", "127.0.0.1:7000", "0-100",
		"b", "127.0.0.1:7001", "101-16383")
	r := HandleUMCTL(store, args)
	if _, ok := r.(*reply.StandardErrReply); !ok {
		t.Fatalf("expected error reply, got %T: %s", r, r.ToBytes())
	}
	if store.Snapshot().Tenant("b") != nil {
		t.Fatal("tenant b must not be installed when tenant a's epoch check fails")
	}
}

func TestHandleUMCTLInfoReportsEpochAndTenants(t *testing.T) {
	store := NewStore()
	store.Install(&Tenant{Name: "mydb", Epoch: 1})

	r := HandleUMCTL(store, mustArgsControl("UMCTL", "INFO"))
	bulk, ok := r.(*reply.BulkReply)
	if !ok {
		t.Fatalf("expected bulk reply, got %T", r)
	}
	body := string(bulk.Arg)
	if !strings.Contains(body, "tenants:1") {
		t.Fatalf("info body missing tenant count: %q", body)
	}
	if !strings.Contains(body, "db:mydb") {
		t.Fatalf("info body missing tenant line: %q", body)
	}
}

func TestHandleUMCTLUnknownSubcommand(t *testing.T) {
	store := NewStore()
	r := HandleUMCTL(store, mustArgsControl("UMCTL", "BOGUS"))
	if _, ok := r.(*reply.StandardErrReply); !ok {
		t.Fatalf("expected error for unknown subcommand, got %T", r)
	}
}

func TestIsAdmin(t *testing.T) {
	cases := []struct {
		tenant, admin string
		want          bool
	}{
		{"", "admin", true},
		{"admin", "admin", true},
		{"mydb", "admin", false},
	}
	for _, c := range cases {
		if got := IsAdmin(c.tenant, c.admin); got != c.want {
			t.Errorf("IsAdmin(%q, %q) = %v, want %v", c.tenant, c.admin, got, c.want)
		}
	}
}
