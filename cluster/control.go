// UMCTL command handling — the out-of-band control plane that pushes
// slot/tenant meta into the Store. Grounded on
// chuimengdaoxizhou-go-redis/cluster/com.go, which parses a small
// fixed-shape command family out of [][]byte args by hand (no
// command-line library, just strconv/strings) — the same style
// continues here for SETDB/SETPEER/INFO.
package cluster

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rcproxy/interface/resp"
	"rcproxy/lib/metrics"
	"rcproxy/resp/reply"
)

var rangeTokenRe = regexp.MustCompile(`^(\d+)-(\d+)(?:\{(MIGRATING|IMPORTING)/(.+)\})?$`)

func isRangeToken(tok string) bool {
	return rangeTokenRe.MatchString(tok)
}

func parseRangeToken(tok string) (SlotRange, error) {
	m := rangeTokenRe.FindStringSubmatch(tok)
	if m == nil {
		return SlotRange{}, fmt.Errorf("malformed slot range %q", tok)
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return SlotRange{}, fmt.Errorf("malformed slot range %q", tok)
	}
	end, err := strconv.Atoi(m[2])
	if err != nil {
		return SlotRange{}, fmt.Errorf("malformed slot range %q", tok)
	}
	r := SlotRange{Start: start, End: end, Tag: TagStable}
	switch m[3] {
	case "MIGRATING":
		r.Tag = TagMigrating
		r.PeerAddr = m[4]
	case "IMPORTING":
		r.Tag = TagImporting
		r.PeerAddr = m[4]
	}
	return r, nil
}

// nodeGroup is one (tenant, addr, ranges) tuple parsed out of a
// SETDB/SETPEER command's variadic tail.
type nodeGroup struct {
	tenant string
	addr   string
	ranges []SlotRange
}

func parseNodeGroups(tokens []string) ([]nodeGroup, error) {
	var groups []nodeGroup
	i := 0
	for i < len(tokens) {
		if i+1 >= len(tokens) {
			return nil, fmt.Errorf("truncated node group at %q", tokens[i])
		}
		g := nodeGroup{tenant: tokens[i], addr: tokens[i+1]}
		i += 2
		for i < len(tokens) && isRangeToken(tokens[i]) {
			r, err := parseRangeToken(tokens[i])
			if err != nil {
				return nil, err
			}
			g.ranges = append(g.ranges, r)
			i++
		}
		if len(g.ranges) == 0 {
			return nil, fmt.Errorf("node group %s/%s has no slot ranges", g.tenant, g.addr)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// groupsToTenants folds a flat list of node groups (which may repeat
// the same tenant name across multiple nodes) into one *Tenant per
// distinct name, stamping epoch and preserving whichever of
// LocalNodes/PeerNodes the caller isn't replacing by carrying it over
// from the currently installed tenant, if any.
func groupsToTenants(cur *MetaSnapshot, groups []nodeGroup, epoch uint64, local bool) []*Tenant {
	byName := map[string][]Node{}
	order := []string{}
	for _, g := range groups {
		if _, ok := byName[g.tenant]; !ok {
			order = append(order, g.tenant)
		}
		byName[g.tenant] = append(byName[g.tenant], Node{Addr: g.addr, Ranges: g.ranges})
	}
	tenants := make([]*Tenant, 0, len(order))
	for _, name := range order {
		t := &Tenant{Name: name, Epoch: epoch}
		if prev := cur.Tenant(name); prev != nil {
			if local {
				t.PeerNodes = prev.PeerNodes
			} else {
				t.LocalNodes = prev.LocalNodes
			}
		}
		if local {
			t.LocalNodes = byName[name]
		} else {
			t.PeerNodes = byName[name]
		}
		tenants = append(tenants, t)
	}
	return tenants
}

// HandleUMCTL dispatches UMCTL SETDB/SETPEER/INFO. args[0] is "UMCTL".
func HandleUMCTL(store *Store, args [][]byte) resp.Reply {
	if len(args) < 2 {
		return reply.MakeErrReply("ERR wrong number of arguments for UMCTL")
	}
	sub := strings.ToUpper(string(args[1]))
	switch sub {
	case "SETDB":
		return handleSet(store, args, true)
	case "SETPEER":
		return handleSet(store, args, false)
	case "INFO":
		return handleInfo(store)
	default:
		return reply.MakeErrReply("ERR unknown UMCTL subcommand: " + sub)
	}
}

func handleSet(store *Store, args [][]byte, local bool) resp.Reply {
	if len(args) < 5 {
		return reply.MakeErrReply("ERR wrong number of arguments for UMCTL SETDB/SETPEER")
	}
	epoch, err := strconv.ParseUint(string(args[2]), 10, 64)
	if err != nil {
		return reply.MakeErrReply("ERR malformed epoch")
	}
	flags := strings.ToUpper(string(args[3]))
	if flags != "NOFLAGS" {
		return reply.MakeErrReply("ERR unknown flags: " + flags)
	}
	tokens := make([]string, len(args)-4)
	for i, a := range args[4:] {
		tokens[i] = string(a)
	}
	groups, err := parseNodeGroups(tokens)
	if err != nil {
		return reply.MakeErrReply("ERR " + err.Error())
	}
	cur := store.Snapshot()
	tenants := groupsToTenants(cur, groups, epoch, local)
	if err := store.InstallBatch(tenants); err != nil {
		return reply.MakeErrReply("ERR " + err.Error())
	}
	return reply.MakeOkReply()
}

func handleInfo(store *Store) resp.Reply {
	snap := store.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "epoch:%d\r\n", snap.GlobalEpoch)
	fmt.Fprintf(&b, "tenants:%d\r\n", len(snap.Tenants))
	for name, t := range snap.Tenants {
		fmt.Fprintf(&b, "db:%s epoch=%d local_nodes=%d peer_nodes=%d\r\n",
			name, t.Epoch, len(t.LocalNodes), len(t.PeerNodes))
	}

	counters := metrics.Snapshot()
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "metric:%s %g\r\n", name, counters[name])
	}
	return reply.MakeBulkReply([]byte(b.String()))
}

// IsAdmin reports whether tenant is allowed to issue UMCTL commands:
// the explicit admin tenant, or unauthenticated (per spec.md §4.7,
// "or unauthenticated on the implicit admin tenant").
func IsAdmin(tenant, adminTenant string) bool {
	return tenant == "" || tenant == adminTenant
}
