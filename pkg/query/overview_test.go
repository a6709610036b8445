package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbauctions/archive/pkg/playernames"
	"github.com/sbauctions/archive/pkg/tierrouter"
	badgerstore "github.com/sbauctions/archive/pkg/hotstore/badger"
)

func TestRecentOverviewFallsBackToTwoWeeks(t *testing.T) {
	ctx := context.Background()
	hot, err := badgerstore.New(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { hot.Close() })

	names := playernames.NewStatic(nil)
	e := New(hot, nil, tierrouter.New(hot, nil, 3), nil, names)
	e.now = func() time.Time { return fixedNow }

	// Zero sales in the last hour, 15 within the last two weeks.
	seller := uuid.New()
	names.Add(seller, "TestPlayer")
	for i := 0; i < 15; i++ {
		a := soldAuction("X", fixedNow.Add(-time.Duration(i+2)*24*time.Hour/2), int64(100+i))
		a.SellerUUID = seller
		require.NoError(t, hot.Insert(ctx, a))
	}

	previews, err := e.RecentOverview(ctx, "X", nil)
	require.NoError(t, err)
	require.Len(t, previews, 12)

	for i := 1; i < len(previews); i++ {
		assert.False(t, previews[i].End.After(previews[i-1].End))
	}
	assert.Equal(t, "TestPlayer", previews[0].PlayerName)
}

func TestRecentOverviewPrefersLastHour(t *testing.T) {
	ctx := context.Background()
	hot, err := badgerstore.New(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { hot.Close() })

	e := New(hot, nil, tierrouter.New(hot, nil, 3), nil, nil)
	e.now = func() time.Time { return fixedNow }

	for i := 0; i < 13; i++ {
		a := soldAuction("X", fixedNow.Add(-time.Duration(i+1)*4*time.Minute), int64(100+i))
		require.NoError(t, hot.Insert(ctx, a))
	}

	previews, err := e.RecentOverview(ctx, "X", nil)
	require.NoError(t, err)
	require.Len(t, previews, 12)
	for _, p := range previews {
		assert.True(t, p.End.After(fixedNow.Add(-time.Hour)))
	}
}
