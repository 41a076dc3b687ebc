// Package cluster implements the proxy's routing brain: the slot
// hasher (slot.go), the tenant/slot/peer meta store (this file), the
// backend connection pool (pool.go), the command router (router.go),
// the per-client session (session.go), the UMCTL control plane
// (control.go) and the synthesized CLUSTER NODES/SLOTS view (view.go).
//
// Grounded throughout on chuimengdaoxizhou-go-redis's cluster package
// (cluster_database.go, router.go, com.go, client_pool.go), which
// already shapes a command router plus a peer relay/connection-pool
// pair — generalized here from "route by consistent hash across
// interchangeable peers" to "route by explicit per-tenant slot range,
// possibly redirecting instead of forwarding".
package cluster

import (
	"fmt"
	"sync/atomic"
)

// RangeTag marks why a slot range is assigned the way it is.
type RangeTag int

const (
	// TagStable ranges are owned outright; no migration in progress.
	TagStable RangeTag = iota
	// TagImporting ranges are being moved into this node from
	// PeerAddr; until migration finishes the range is still owned
	// by PeerAddr unless the client set ASKING.
	TagImporting
	// TagMigrating ranges are being moved out of this node to
	// PeerAddr; the router still forwards every command for them to
	// the local node and does not issue ASK redirects to PeerAddr.
	TagMigrating
)

func (t RangeTag) String() string {
	switch t {
	case TagStable:
		return "stable"
	case TagImporting:
		return "importing"
	case TagMigrating:
		return "migrating"
	default:
		return "unknown"
	}
}

// SlotRange is an inclusive [Start, End] span of the 16384-slot
// keyspace, tagged with its migration state. PeerAddr is only
// meaningful for TagImporting (the current owner, src) and
// TagMigrating (the destination, dst).
type SlotRange struct {
	Start, End int
	Tag        RangeTag
	PeerAddr   string
}

func (r SlotRange) Contains(slot int) bool {
	return slot >= r.Start && slot <= r.End
}

func (r SlotRange) String() string {
	s := fmt.Sprintf("%d-%d", r.Start, r.End)
	switch r.Tag {
	case TagImporting:
		s += fmt.Sprintf("{IMPORTING/%s}", r.PeerAddr)
	case TagMigrating:
		s += fmt.Sprintf("{MIGRATING/%s}", r.PeerAddr)
	}
	return s
}

// Node is a single Redis endpoint (this proxy, a sibling backend it
// owns, or a peer proxy) together with the slot ranges it serves
// within one tenant.
type Node struct {
	Addr   string
	Ranges []SlotRange
}

// Tenant is one logical database: an AUTH token plus the slot map it
// owns directly (LocalNodes, forwarded to this proxy's own backends)
// and the slot map owned by other proxies (PeerNodes, used only to
// generate MOVED replies).
type Tenant struct {
	Name       string
	Epoch      uint64
	LocalNodes []Node
	PeerNodes  []Node
}

// rangeOwner finds the Node and SlotRange covering slot among nodes,
// or (Node{}, SlotRange{}, false) if none does.
func rangeOwner(nodes []Node, slot int) (Node, SlotRange, bool) {
	for _, n := range nodes {
		for _, r := range n.Ranges {
			if r.Contains(slot) {
				return n, r, true
			}
		}
	}
	return Node{}, SlotRange{}, false
}

// LocalOwner returns the local node and range covering slot, if any.
func (t *Tenant) LocalOwner(slot int) (Node, SlotRange, bool) {
	return rangeOwner(t.LocalNodes, slot)
}

// PeerOwner returns the peer node and range covering slot, if any.
func (t *Tenant) PeerOwner(slot int) (Node, SlotRange, bool) {
	return rangeOwner(t.PeerNodes, slot)
}

// validateDisjoint reports an error if any two ranges across nodes
// overlap — the invariant that for any slot, at most one local Node
// owns it within one tenant snapshot (spec.md §3, §8).
func validateDisjoint(nodes []Node) error {
	type span struct{ start, end int }
	var spans []span
	for _, n := range nodes {
		for _, r := range n.Ranges {
			if r.Start < 0 || r.End >= NumSlots || r.Start > r.End {
				return fmt.Errorf("malformed slot range %d-%d", r.Start, r.End)
			}
			spans = append(spans, span{r.Start, r.End})
		}
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].start <= spans[j].end && spans[j].start <= spans[i].end {
				return fmt.Errorf("overlapping slot ranges %d-%d and %d-%d",
					spans[i].start, spans[i].end, spans[j].start, spans[j].end)
			}
		}
	}
	return nil
}

// MetaSnapshot is an immutable view of every tenant's slot map. The
// Store below only ever publishes new snapshots, never mutates one in
// place, so a reader that has loaded a *MetaSnapshot can keep using it
// for the lifetime of a single request without locking.
type MetaSnapshot struct {
	Tenants     map[string]*Tenant
	GlobalEpoch uint64
}

// Tenant looks up name, returning nil if it isn't known.
func (m *MetaSnapshot) Tenant(name string) *Tenant {
	if m == nil {
		return nil
	}
	return m.Tenants[name]
}

// Store holds the single, atomically-swapped current MetaSnapshot.
// Grounded on the teacher's cluster_database.go, which kept its peer
// table behind a plain map guarded informally by the assumption that
// topology never changes at runtime; here topology changes on every
// UMCTL push, so the snapshot is versioned per tenant and swapped with
// atomic.Pointer instead, giving routing reads a wait-free path.
type Store struct {
	ptr atomic.Pointer[MetaSnapshot]
}

// NewStore returns a Store with an empty snapshot installed.
func NewStore() *Store {
	s := &Store{}
	s.ptr.Store(&MetaSnapshot{Tenants: map[string]*Tenant{}})
	return s
}

// Snapshot returns the current snapshot. Safe for concurrent use by
// any number of goroutines without blocking a concurrent Install.
func (s *Store) Snapshot() *MetaSnapshot {
	return s.ptr.Load()
}

// Install validates next and, if it is acceptable, copy-on-writes a
// new snapshot with next replacing its named tenant and atomically
// publishes it. It rejects next when its Epoch does not strictly
// exceed the previously installed epoch for that tenant — the
// staleness guard behind UMCTL SETDB/SETPEER (spec.md §4.7) — and
// when its LocalNodes ranges are malformed or overlapping.
func (s *Store) Install(next *Tenant) error {
	return s.InstallBatch([]*Tenant{next})
}

// InstallBatch installs every tenant in next as a single atomic
// snapshot swap: either all of them pass validation and epoch
// checking and are published together, or none are — the "no request
// ever observes a partially applied update" invariant for a single
// UMCTL SETDB/SETPEER call that names more than one tenant.
func (s *Store) InstallBatch(next []*Tenant) error {
	for _, t := range next {
		if t == nil || t.Name == "" {
			return fmt.Errorf("tenant name required")
		}
		if err := validateDisjoint(t.LocalNodes); err != nil {
			return fmt.Errorf("tenant %s: local nodes: %w", t.Name, err)
		}
		if err := validateDisjoint(t.PeerNodes); err != nil {
			return fmt.Errorf("tenant %s: peer nodes: %w", t.Name, err)
		}
	}
	for {
		cur := s.ptr.Load()
		for _, t := range next {
			if prev, ok := cur.Tenants[t.Name]; ok && t.Epoch <= prev.Epoch {
				return fmt.Errorf("tenant %s: epoch %d not newer than installed epoch %d",
					t.Name, t.Epoch, prev.Epoch)
			}
		}
		updated := make(map[string]*Tenant, len(cur.Tenants)+len(next))
		for k, v := range cur.Tenants {
			updated[k] = v
		}
		for _, t := range next {
			updated[t.Name] = t
		}
		newSnap := &MetaSnapshot{Tenants: updated, GlobalEpoch: cur.GlobalEpoch + 1}
		if s.ptr.CompareAndSwap(cur, newSnap) {
			return nil
		}
		// lost the race to a concurrent Install; retry against the
		// fresh snapshot rather than silently dropping this update.
	}
}
