//go:build integration

package snapshot_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"storefront/internal/cart/models"
	"storefront/internal/cart/store/snapshot"
	"storefront/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *snapshot.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.store = snapshot.NewRedis(s.redis.Client, "storefront:cart:test", nil)
}

func (s *RedisStoreSuite) TestLoadMissingKey() {
	lines, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Empty(lines)
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	want := []models.Line{
		{ProductID: "p1", Name: "Cream", UnitPriceGross: decimal.RequireFromString("12.20"), Quantity: 2},
		{ProductID: "p2", Name: "Soap", UnitPriceGross: decimal.RequireFromString("4.88"), Quantity: 1},
	}

	s.Require().NoError(s.store.Save(ctx, want))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("p1", got[0].ProductID)
	s.Equal("p2", got[1].ProductID)
	s.True(want[0].UnitPriceGross.Equal(got[0].UnitPriceGross))
}

func (s *RedisStoreSuite) TestMalformedRecordLoadsEmpty() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "storefront:cart:test", "not json", 0).Err())

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *RedisStoreSuite) TestSaveOverwrites() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, []models.Line{{ProductID: "p1", Quantity: 1}}))
	s.Require().NoError(s.store.Save(ctx, nil))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Empty(got)
}
