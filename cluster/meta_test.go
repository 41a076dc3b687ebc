package cluster

import "testing"

func TestStoreInstallAndSnapshot(t *testing.T) {
	s := NewStore()
	if got := s.Snapshot().Tenant("acme"); got != nil {
		t.Fatalf("expected no tenant before install, got %+v", got)
	}
	err := s.Install(&Tenant{
		Name:  "acme",
		Epoch: 1,
		LocalNodes: []Node{
			{Addr: "10.0.0.1:7000", Ranges: []SlotRange{{Start: 0, End: 8191, Tag: TagStable}}},
		},
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	tn := s.Snapshot().Tenant("acme")
	if tn == nil || tn.Epoch != 1 {
		t.Fatalf("got %+v", tn)
	}
}

func TestStoreRejectsStaleEpoch(t *testing.T) {
	s := NewStore()
	base := &Tenant{
		Name:  "acme",
		Epoch: 5,
		LocalNodes: []Node{
			{Addr: "10.0.0.1:7000", Ranges: []SlotRange{{Start: 0, End: 16383, Tag: TagStable}}},
		},
	}
	if err := s.Install(base); err != nil {
		t.Fatalf("Install: %v", err)
	}
	stale := &Tenant{Name: "acme", Epoch: 5, LocalNodes: base.LocalNodes}
	if err := s.Install(stale); err == nil {
		t.Fatal("expected stale epoch to be rejected")
	}
	older := &Tenant{Name: "acme", Epoch: 4, LocalNodes: base.LocalNodes}
	if err := s.Install(older); err == nil {
		t.Fatal("expected older epoch to be rejected")
	}
	// the rejected updates must not have clobbered the installed one.
	if got := s.Snapshot().Tenant("acme").Epoch; got != 5 {
		t.Fatalf("epoch regressed to %d", got)
	}
}

func TestStoreRejectsOverlappingRanges(t *testing.T) {
	s := NewStore()
	err := s.Install(&Tenant{
		Name: "acme",
		LocalNodes: []Node{
			{Addr: "a:1", Ranges: []SlotRange{{Start: 0, End: 100}}},
			{Addr: "b:1", Ranges: []SlotRange{{Start: 50, End: 150}}},
		},
	})
	if err == nil {
		t.Fatal("expected overlap to be rejected")
	}
}

func TestStoreRejectsMalformedRange(t *testing.T) {
	s := NewStore()
	if err := s.Install(&Tenant{Name: "acme", LocalNodes: []Node{
		{Addr: "a:1", Ranges: []SlotRange{{Start: 100, End: 50}}},
	}}); err == nil {
		t.Fatal("expected start > end to be rejected")
	}
	if err := s.Install(&Tenant{Name: "acme", LocalNodes: []Node{
		{Addr: "a:1", Ranges: []SlotRange{{Start: 0, End: NumSlots}}},
	}}); err == nil {
		t.Fatal("expected out-of-range end to be rejected")
	}
}

func TestTenantLocalOwnerAtMostOne(t *testing.T) {
	tn := &Tenant{
		Name: "acme",
		LocalNodes: []Node{
			{Addr: "a:1", Ranges: []SlotRange{{Start: 0, End: 99, Tag: TagStable}}},
			{Addr: "b:1", Ranges: []SlotRange{{Start: 100, End: 199, Tag: TagMigrating, PeerAddr: "c:1"}}},
		},
	}
	n, r, ok := tn.LocalOwner(50)
	if !ok || n.Addr != "a:1" || r.Tag != TagStable {
		t.Fatalf("got %+v %+v %v", n, r, ok)
	}
	n, r, ok = tn.LocalOwner(150)
	if !ok || n.Addr != "b:1" || r.Tag != TagMigrating || r.PeerAddr != "c:1" {
		t.Fatalf("got %+v %+v %v", n, r, ok)
	}
	if _, _, ok := tn.LocalOwner(9000); ok {
		t.Fatal("slot 9000 is uncovered and must report ok=false")
	}
}

func TestInstallIsCopyOnWrite(t *testing.T) {
	s := NewStore()
	s.Install(&Tenant{Name: "a", Epoch: 1})
	snap1 := s.Snapshot()
	s.Install(&Tenant{Name: "b", Epoch: 1})
	snap2 := s.Snapshot()
	if _, ok := snap1.Tenants["b"]; ok {
		t.Fatal("earlier snapshot must not observe a later tenant (not immutable)")
	}
	if _, ok := snap2.Tenants["a"]; !ok {
		t.Fatal("later snapshot must still carry forward earlier tenants")
	}
}
