package backend

import (
	"context"
	"fmt"

	"github.com/mcrelay/mcrelay/meta"
	"github.com/mcrelay/mcrelay/routing"
)

// ShardGroup fans a single logical pool name out across a fixed set of
// shard replicas, addressed as "<base>:<index>" (poolA:0, poolA:1, ...),
// matching the base-name-plus-numeric-suffix shape original_source's
// test_shard_splits.py exercises. Unlike JumpSelector, membership here is
// fixed for the group's lifetime, so the simpler crc32 modulo of
// ServersFromAddr is enough: there's no remapping cost to minimize when
// the replica count never changes underneath it.
type ShardGroup struct {
	base    string
	servers Servers
	shards  []string
	pools   map[string]*AccessPointPool
}

// NewShardGroup builds a ShardGroup over pools, naming shards base:0
// through base:len(pools)-1 in the order pools are given.
func NewShardGroup(base string, pools []*AccessPointPool) (*ShardGroup, error) {
	if len(pools) == 0 {
		return nil, ErrNoServers
	}

	addrs := make([]string, len(pools))
	byAddr := make(map[string]*AccessPointPool, len(pools))
	shards := make([]string, len(pools))
	for i, p := range pools {
		addrs[i] = p.Address()
		byAddr[p.Address()] = p
		shards[i] = fmt.Sprintf("%s:%d", base, i)
	}

	return &ShardGroup{
		base:    base,
		servers: ServersFromAddr(addrs...),
		shards:  shards,
		pools:   byAddr,
	}, nil
}

var (
	_ routing.AccessPoint   = (*ShardGroup)(nil)
	_ routing.ShardSplitter = (*ShardGroup)(nil)
)

// Address returns the group's base pool name.
func (g *ShardGroup) Address() string {
	return g.base
}

// Shards reports every replica name this group can route to, satisfying
// routing.ShardSplitter for traversal that must visit all of them.
func (g *ShardGroup) Shards() []string {
	return g.shards
}

// Execute picks the shard replica req.Key hashes to with crc32 and runs
// req against it.
func (g *ShardGroup) Execute(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	addr := g.servers.Select(req.Key)
	pool, ok := g.pools[addr]
	if !ok {
		return nil, ErrNoServers
	}
	return pool.Execute(ctx, req)
}
