package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbauctions/archive/pkg/auction"
)

func TestFilterKeySortedAndExcludesTimeKeys(t *testing.T) {
	raw := map[string]string{
		"tier":      "MYTHIC",
		"EndBefore": "1700000000",
		"EndAfter":  "1690000000",
		"bin":       "true",
	}
	assert.Equal(t, "bintruetierMYTHIC", FilterKey(raw))
	assert.Equal(t, "", FilterKey(nil))
}

func TestMapCompilerEquality(t *testing.T) {
	pred, err := MapCompiler{}.Compile(map[string]string{
		"tier":     "MYTHIC",
		"modifier": "sharp",
	})
	require.NoError(t, err)

	a := &auction.Auction{
		Tier:       "MYTHIC",
		Attributes: map[string]string{"modifier": "sharp"},
	}
	assert.True(t, pred(a))

	a.Tier = "LEGENDARY"
	assert.False(t, pred(a))
}

func TestMapCompilerTimeWindow(t *testing.T) {
	pred, err := MapCompiler{}.Compile(map[string]string{
		"EndAfter":  "2024-06-01",
		"EndBefore": "2024-07-01",
	})
	require.NoError(t, err)

	in := &auction.Auction{End: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)}
	out := &auction.Auction{End: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)}
	assert.True(t, pred(in))
	assert.False(t, pred(out))
}

func TestMapCompilerRejectsBadTime(t *testing.T) {
	_, err := MapCompiler{}.Compile(map[string]string{"EndAfter": "not-a-time"})
	require.Error(t, err)
}

func TestMapCompilerEnchantmentLevel(t *testing.T) {
	pred, err := MapCompiler{}.Compile(map[string]string{"sharpness": "5"})
	require.NoError(t, err)

	assert.True(t, pred(&auction.Auction{Enchantments: map[string]int{"sharpness": 5}}))
	assert.False(t, pred(&auction.Auction{Enchantments: map[string]int{"sharpness": 4}}))
}
