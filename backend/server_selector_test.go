package backend

import (
	"context"
	"testing"

	"github.com/mcrelay/mcrelay/meta"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerSelector_WithinRange(t *testing.T) {
	for _, key := range []string{"a", "b", "mykey", "another-key"} {
		idx := DefaultServerSelector(key, 5)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 5)
	}
}

func TestDefaultServerSelector_Deterministic(t *testing.T) {
	require.Equal(t, DefaultServerSelector("mykey", 7), DefaultServerSelector("mykey", 7))
}

func TestDefaultServerSelector_SingleServer(t *testing.T) {
	require.Equal(t, 0, DefaultServerSelector("anything", 1))
}

func TestStaticSelector_AlwaysReturnsConfiguredIndex(t *testing.T) {
	sel := staticSelector(2)
	require.Equal(t, 2, sel("any-key", 5))
	require.Equal(t, 2, sel("other-key", 5))
}

func TestStaticSelector_WrapsAroundServerCount(t *testing.T) {
	sel := staticSelector(7)
	require.Equal(t, 2, sel("key", 5))
}

func TestJumpSelector_ExecuteRoutesToSelectedPool(t *testing.T) {
	addrA := startFakeServer(t, map[string]string{"mg akey v\r\n": "VA 1\r\na\r\n"})
	addrB := startFakeServer(t, map[string]string{"mg akey v\r\n": "VA 1\r\nb\r\n"})

	poolA, err := NewAccessPointPool(addrA, testConfig(NewChannelPool))
	require.NoError(t, err)
	poolB, err := NewAccessPointPool(addrB, testConfig(NewChannelPool))
	require.NoError(t, err)

	js := NewJumpSelector([]*AccessPointPool{poolA, poolB})
	wantIdx := DefaultServerSelector("akey", 2)

	resp, err := js.Execute(context.Background(), meta.NewRequest(meta.CmdGet, "akey", nil).AddReturnValue())
	require.NoError(t, err)
	if wantIdx == 0 {
		require.Equal(t, "a", string(resp.Data))
	} else {
		require.Equal(t, "b", string(resp.Data))
	}
}

func TestJumpSelector_ExecuteWithNoPoolsErrors(t *testing.T) {
	js := NewJumpSelector(nil)
	_, err := js.Execute(context.Background(), meta.NewRequest(meta.CmdGet, "key", nil))
	require.ErrorIs(t, err, ErrJumpSelectorEmpty)
}

func TestJumpSelector_AddressListsAllPools(t *testing.T) {
	js := NewJumpSelector([]*AccessPointPool{{addr: "a:1"}, {addr: "b:1"}})
	require.Equal(t, "jump:a:1,b:1", js.Address())
}
