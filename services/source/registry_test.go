package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Descriptor{ID: "alpha"}, &stubProvider{}))

	err := reg.Register(Descriptor{ID: "alpha"}, &stubProvider{})
	assert.ErrorIs(t, err, ErrDuplicateSource)
}

func TestRegistryResolveIgnoresEnabledFlag(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Descriptor{ID: "alpha", Enabled: true}, &stubProvider{}))
	require.NoError(t, reg.SetEnabled("alpha", false))

	h, err := reg.Resolve("alpha")
	require.NoError(t, err)
	assert.False(t, h.Descriptor.Enabled)

	_, err = reg.Resolve("ghost")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestRegistryAdultFiltering(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Descriptor{ID: "safe", Adult: SafeOnly, Enabled: true}, &stubProvider{}))
	require.NoError(t, reg.Register(Descriptor{ID: "adult", Adult: AdultOnly, Enabled: true}, &stubProvider{}))
	require.NoError(t, reg.Register(Descriptor{ID: "mixed", Adult: Mixed, Enabled: true}, &stubProvider{}))

	ids := func(ds []Descriptor) []string {
		out := make([]string, 0, len(ds))
		for _, d := range ds {
			out = append(out, d.ID)
		}
		return out
	}

	assert.Equal(t, []string{"safe", "mixed"}, ids(reg.List(ListFilter{})))
	assert.Equal(t, []string{"safe", "adult", "mixed"}, ids(reg.List(ListFilter{IncludeAdult: true})))
	assert.Equal(t, []string{"adult", "mixed"}, ids(reg.List(ListFilter{AdultOnly: true})))
}

func TestRegistryEnabledPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, reg.Register(Descriptor{ID: id, Enabled: true}, &stubProvider{}))
	}
	require.NoError(t, reg.SetEnabled("a", false))

	handles := reg.Enabled(ListFilter{})
	require.Len(t, handles, 2)
	assert.Equal(t, "c", handles[0].Descriptor.ID)
	assert.Equal(t, "b", handles[1].Descriptor.ID)
}

func TestRegistryListReturnsCopies(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Descriptor{ID: "alpha", Enabled: true}, &stubProvider{}))

	list := reg.List(ListFilter{})
	list[0].Enabled = false

	h, err := reg.Resolve("alpha")
	require.NoError(t, err)
	assert.True(t, h.Descriptor.Enabled)
}
