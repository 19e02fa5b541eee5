package policy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	pol   Policy
	err   error
	calls int
}

func (r *countingResolver) Resolve(ctx context.Context, orgID int64) (Policy, error) {
	r.calls++
	if r.err != nil {
		return Policy{}, r.err
	}
	return r.pol, nil
}

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestServiceGetCachesResolvedPolicy(t *testing.T) {
	cache, _ := testCache(t)
	resolver := &countingResolver{pol: Policy{
		OrgID:                1,
		TolerancePct:         decimal.NewFromInt(10),
		AllowOverFulfillment: true,
		RequireBatch:         true,
		DefaultQualityStatus: QualityPending,
	}}
	svc := NewService(resolver, cache)

	first, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, resolver.calls)

	second, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, resolver.calls)
	require.Equal(t, first.RequireBatch, second.RequireBatch)
	require.True(t, first.TolerancePct.Equal(second.TolerancePct))
	require.Equal(t, QualityPending, second.DefaultQualityStatus)
}

func TestServiceGetWithoutCache(t *testing.T) {
	resolver := &countingResolver{pol: Default(4)}
	svc := NewService(resolver, nil)

	_, err := svc.Get(context.Background(), 4)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, 2, resolver.calls)
}

func TestServiceGetMissingOrg(t *testing.T) {
	cache, _ := testCache(t)
	resolver := &countingResolver{err: ErrPolicyNotFound}
	svc := NewService(resolver, cache)

	_, err := svc.Get(context.Background(), 77)
	require.ErrorIs(t, err, ErrPolicyNotFound)
	// Failures are not cached.
	_, err = svc.Get(context.Background(), 77)
	require.ErrorIs(t, err, ErrPolicyNotFound)
	require.Equal(t, 2, resolver.calls)
}

func TestServiceInvalidateForcesReload(t *testing.T) {
	cache, _ := testCache(t)
	resolver := &countingResolver{pol: Default(1)}
	svc := NewService(resolver, cache)

	_, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(context.Background(), 1))

	resolver.pol.RequireExpiry = true
	reloaded, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, resolver.calls)
	require.True(t, reloaded.RequireExpiry)
}

func TestCacheExpiry(t *testing.T) {
	cache, mr := testCache(t)
	resolver := &countingResolver{pol: Default(1)}
	svc := NewService(resolver, cache)

	_, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, resolver.calls)
}

func TestDefaultPolicy(t *testing.T) {
	pol := Default(42)
	require.Equal(t, int64(42), pol.OrgID)
	require.True(t, pol.TolerancePct.IsZero())
	require.False(t, pol.AllowOverFulfillment)
	require.False(t, pol.RequireBatch)
	require.False(t, pol.RequireExpiry)
	require.False(t, pol.RequireQualityCheck)
	require.Equal(t, QualityApproved, pol.DefaultQualityStatus)
}
