package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketMonotone(t *testing.T) {
	tag := "DIAMOND_SWORD"
	t1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.LessOrEqual(t, Bucket(tag, t1), Bucket(tag, t2))
}

func TestBucketHighVolumeWidthIsFiner(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(7 * 24 * time.Hour)

	ordinaryDelta := Bucket("DIAMOND_SWORD", end) - Bucket("DIAMOND_SWORD", start)
	highVolumeDelta := Bucket("ENCHANTED_BOOK", end) - Bucket("ENCHANTED_BOOK", start)

	assert.Equal(t, int16(1), ordinaryDelta)
	assert.Greater(t, highVolumeDelta, ordinaryDelta)
}

func TestBucketSeededIsDeterministic(t *testing.T) {
	end := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	a := BucketSeeded("ENCHANTED_BOOK", end, 42)
	b := BucketSeeded("ENCHANTED_BOOK", end, 42)
	assert.Equal(t, a, b)
}

func TestDateOfInvertsBucket(t *testing.T) {
	tag := "HYPERION"
	b := Bucket(tag, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC))
	d := DateOf(tag, b)
	assert.Equal(t, b, Bucket(tag, d))
}
