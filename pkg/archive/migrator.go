// Package archive moves months older than the retention window from
// the hot store into the cold archive, with mandatory content
// verification between the copy and the delete.
package archive

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/coldstore"
	"github.com/sbauctions/archive/pkg/config"
	"github.com/sbauctions/archive/pkg/hotstore"
)

// archiveEpoch is the first month the migrator considers.
var archiveEpoch = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

// tagConcurrency bounds how many tags migrate at once.
const tagConcurrency = 4

// Migrator copies sealed months hot -> cold, verifies the blob against
// the source rows, and only then deletes the hot rows. Progress is
// implicit: a month whose blob exists and verifies is done, so the
// migrator is restartable with no separate pointer.
type Migrator struct {
	hot             hotstore.Store
	cold            *coldstore.Store
	retentionMonths int

	// DryRun stops short of the hot-store delete.
	DryRun bool

	verificationFailures atomic.Int64
	monthsMigrated       atomic.Int64

	// now and sampleSeed are swappable for tests.
	now        func() time.Time
	sampleSeed int64
}

// New creates a Migrator.
func New(hot hotstore.Store, cold *coldstore.Store, retentionMonths int) *Migrator {
	return &Migrator{
		hot:             hot,
		cold:            cold,
		retentionMonths: retentionMonths,
		now:             time.Now,
		sampleSeed:      time.Now().UnixNano(),
	}
}

// VerificationFailures returns the number of failed verifications since
// start.
func (m *Migrator) VerificationFailures() int64 {
	return m.verificationFailures.Load()
}

// MonthsMigrated returns the number of months sealed since start.
func (m *Migrator) MonthsMigrated() int64 {
	return m.monthsMigrated.Load()
}

// RunOnce walks every tag and every month older than the retention
// window. A tag that fails stops that tag's walk, not the whole run.
func (m *Migrator) RunOnce(ctx context.Context) error {
	tags, err := m.hot.DistinctTags(ctx)
	if err != nil {
		return fmt.Errorf("archive: listing tags: %w", err)
	}

	cutoff := m.cutoffMonth()

	var g errgroup.Group
	g.SetLimit(tagConcurrency)
	for _, tag := range tags {
		tag := tag
		g.Go(func() error {
			if err := m.migrateTag(ctx, tag, cutoff); err != nil {
				log.Printf("archive: tag %q migration stopped: %v", tag, err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// cutoffMonth is the first month that stays hot.
func (m *Migrator) cutoffMonth() time.Time {
	now := m.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return monthStart.AddDate(0, -m.retentionMonths, 0)
}

func (m *Migrator) migrateTag(ctx context.Context, tag string, cutoff time.Time) error {
	for month := archiveEpoch; month.Before(cutoff); month = month.AddDate(0, 1, 0) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.migrateMonth(ctx, tag, month); err != nil {
			return err
		}
	}
	return nil
}

// migrateMonth seals one (tag, month): skip if already archived, copy,
// verify, then delete. A verification failure aborts before the delete.
func (m *Migrator) migrateMonth(ctx context.Context, tag string, month time.Time) error {
	year, mon := month.Year(), int(month.Month())

	exists, err := m.cold.MonthExists(ctx, tag, year, mon)
	if err != nil {
		return fmt.Errorf("checking %s/%d/%02d: %w", tag, year, mon, err)
	}
	if exists {
		return nil
	}

	rows, err := m.collectMonth(ctx, tag, month)
	if err != nil {
		return fmt.Errorf("reading hot %s/%d/%02d: %w", tag, year, mon, err)
	}
	if len(rows) == 0 {
		return nil
	}

	if err := m.cold.StoreMonth(ctx, tag, year, mon, rows); err != nil {
		return err
	}

	if err := m.verify(ctx, tag, year, mon, rows); err != nil {
		m.verificationFailures.Add(1)
		return fmt.Errorf("verification of %s/%d/%02d failed, hot rows kept: %w", tag, year, mon, err)
	}

	if m.DryRun {
		log.Printf("archive: dry-run, keeping %d hot rows for %s/%d/%02d", len(rows), tag, year, mon)
		return nil
	}

	keys := make([]hotstore.RowKey, 0, len(rows))
	for _, a := range rows {
		keys = append(keys, hotstore.RowKey{
			Tag:     a.Tag,
			TimeKey: auction.Bucket(a.Tag, a.End),
			IsSold:  a.IsSold,
			End:     a.End,
			UUID:    a.UUID,
		})
	}
	if err := m.hot.DeleteRowsMatching(ctx, keys); err != nil {
		return fmt.Errorf("deleting hot rows %s/%d/%02d: %w", tag, year, mon, err)
	}

	m.monthsMigrated.Add(1)
	log.Printf("archive: sealed %s/%d/%02d (%d rows)", tag, year, mon, len(rows))
	return nil
}

func (m *Migrator) collectMonth(ctx context.Context, tag string, month time.Time) ([]auction.Auction, error) {
	monthEnd := month.AddDate(0, 1, 0)
	it, err := m.hot.Range(ctx, tag, month.Add(-time.Nanosecond), monthEnd.Add(-time.Nanosecond), nil, 0)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows []auction.Auction
	for {
		a, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, a)
	}
}

// verify reads the blob back and asserts it matches the source rows:
// equal count, equal uuid set, and field-level equality on up to ten
// random samples.
func (m *Migrator) verify(ctx context.Context, tag string, year, mon int, rows []auction.Auction) error {
	stored, err := m.cold.GetMonth(ctx, tag, year, mon)
	if err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	if len(stored) != len(rows) {
		return fmt.Errorf("count mismatch: blob has %d, hot had %d", len(stored), len(rows))
	}

	// The same uuid may appear twice (listing and sale versions), so
	// the sets compare with multiplicity.
	blobSet := make(map[uuid.UUID]int, len(stored))
	for _, a := range stored {
		blobSet[a.UUID]++
	}
	for _, a := range rows {
		blobSet[a.UUID]--
		if blobSet[a.UUID] < 0 {
			return fmt.Errorf("uuid %s missing from blob", a.UUID)
		}
	}
	for id, n := range blobSet {
		if n != 0 {
			return fmt.Errorf("uuid %s unexpected in blob", id)
		}
	}

	rng := rand.New(rand.NewSource(m.sampleSeed))
	samples := config.ArchiveVerifySamples
	if samples > len(rows) {
		samples = len(rows)
	}
	for i := 0; i < samples; i++ {
		idx := rng.Intn(len(rows))
		want, got := rows[idx], stored[idx]
		if got.HighestBid != want.HighestBid || got.SellerUUID != want.SellerUUID ||
			!got.End.Equal(want.End) || got.Tag != want.Tag {
			return fmt.Errorf("sample %s differs between blob and hot row", want.UUID)
		}
	}
	return nil
}
