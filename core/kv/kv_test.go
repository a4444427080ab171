package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory("perm")
	t.Cleanup(func() { _ = s.Close() })

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	val := []byte(`{"role":"cashier"}`)
	require.NoError(t, s.Set(ctx, "session-1", val, 0))
	val[0] = 'X'

	got, err := s.Get(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, `{"role":"cashier"}`, string(got))

	require.NoError(t, s.Delete(ctx, "session-1"))
	_, err = s.Get(ctx, "session-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemory("")
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := s.Get(ctx, "k")
		return err == ErrNotFound
	}, time.Second, 10*time.Millisecond)
}

func TestWithPrefixNamespacesKeys(t *testing.T) {
	ctx := context.Background()
	base := NewMemory("")
	a := WithPrefix(base, "a")
	b := WithPrefix(base, "b")

	require.NoError(t, a.Set(ctx, "k", []byte("from-a"), 0))
	_, err := b.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	raw, err := base.Get(ctx, "a:k")
	require.NoError(t, err)
	require.Equal(t, "from-a", string(raw))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "etcd"}, nil)
	require.Error(t, err)

	_, err = Open(context.Background(), Config{Driver: DriverDB}, nil)
	require.Error(t, err)

	s, err := Open(context.Background(), Config{}, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
}
