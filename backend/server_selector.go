package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/mcrelay/mcrelay/internal/jumphash"
	"github.com/mcrelay/mcrelay/meta"
	"github.com/mcrelay/mcrelay/routing"
	"github.com/zeebo/xxh3"
)

// ServerSelector picks an index in [0, serverCount) for key.
type ServerSelector func(key string, serverCount int) int

// DefaultServerSelector uses Jump Hash for consistent server selection.
// Jump Hash provides better distribution and fewer key movements when
// servers are added or removed than a plain modulo hash. For a single
// server it always returns 0.
func DefaultServerSelector(key string, serverCount int) int {
	return jumphash.JumpHash(xxh3.HashString(key), serverCount)
}

// staticSelector is used in tests to always select a specific server.
func staticSelector(index int) ServerSelector {
	return func(key string, serverCount int) int {
		return index % serverCount
	}
}

var ErrJumpSelectorEmpty = errors.New("backend: JumpSelector has no pools")

// JumpSelector groups several AccessPointPools behind consistent-hash
// selection by key. Unlike ShardGroup's crc32-modulo selection, adding or
// removing a pool here only remaps the keys jump hash says have to move,
// which is what makes it fit for a backend list whose membership changes
// at runtime rather than one fixed at startup.
type JumpSelector struct {
	pools    []*AccessPointPool
	selector ServerSelector
}

// NewJumpSelector builds a JumpSelector over pools using DefaultServerSelector.
func NewJumpSelector(pools []*AccessPointPool) *JumpSelector {
	return &JumpSelector{pools: pools, selector: DefaultServerSelector}
}

var _ routing.AccessPoint = (*JumpSelector)(nil)

// Address reports every pool address the selector can route to, so a
// group and its members are both identifiable in logs and stats keyed by
// routing.AccessPoint.Address.
func (j *JumpSelector) Address() string {
	addrs := make([]string, len(j.pools))
	for i, p := range j.pools {
		addrs[i] = p.Address()
	}
	return "jump:" + strings.Join(addrs, ",")
}

// Execute selects a pool for req.Key with the jump-hash selector and runs
// req against it.
func (j *JumpSelector) Execute(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	if len(j.pools) == 0 {
		return nil, ErrJumpSelectorEmpty
	}
	idx := j.selector(req.Key, len(j.pools))
	return j.pools[idx].Execute(ctx, req)
}

// Pools returns the selector's backing pools, for callers that need to
// inspect or aggregate per-pool stats.
func (j *JumpSelector) Pools() []*AccessPointPool {
	return j.pools
}
