// Package restore is the boundary to the legacy SQL database: the
// historical migrator pages it out, and the restore endpoints re-insert
// or remove single auctions while the phase-out is in progress.
package restore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"github.com/sbauctions/archive/pkg/auction"
)

// AuctionRow is the legacy table's shape: the hot columns the old
// service indexed on, plus the full record as a JSON payload.
type AuctionRow struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UUID       string    `bun:"uuid,notnull"`
	Tag        string    `bun:"tag"`
	ItemName   string    `bun:"item_name"`
	Seller     string    `bun:"seller"`
	HighestBid int64     `bun:"highest_bid"`
	End        time.Time `bun:"end"`
	Payload    []byte    `bun:"payload"`
}

// Service wraps the legacy database.
type Service struct {
	db *bun.DB
}

// Open connects to the legacy MySQL database.
func Open(dsn string) (*Service, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("restore: bad dsn: %w", err)
	}
	cfg.ParseTime = true

	sqldb, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("restore: opening mysql: %w", err)
	}
	return NewService(bun.NewDB(sqldb, mysqldialect.New())), nil
}

// NewService wraps an existing bun.DB (tests pass a sqlite-free mock or
// a dedicated schema).
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Close releases the connection pool.
func (s *Service) Close() error {
	return s.db.Close()
}

// Page returns rows with id in [offset, offset+limit), the historical
// migration's primary-key window.
func (s *Service) Page(ctx context.Context, offset int64, limit int) ([]auction.Auction, error) {
	var rows []AuctionRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("id >= ?", offset).
		Where("id < ?", offset+int64(limit)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore: paging [%d, %d): %w", offset, offset+int64(limit), err)
	}

	out := make([]auction.Auction, 0, len(rows))
	for _, row := range rows {
		a, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("restore: row %d: %w", row.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Insert writes one auction back into the legacy table (the restore
// endpoint's re-insert path).
func (s *Service) Insert(ctx context.Context, a auction.Auction) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("restore: encoding %s: %w", a.UUID, err)
	}
	row := AuctionRow{
		UUID:       a.UUID.String(),
		Tag:        a.Tag,
		ItemName:   a.ItemName,
		Seller:     a.SellerUUID.String(),
		HighestBid: a.HighestBid,
		End:        a.End,
		Payload:    payload,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("restore: inserting %s: %w", a.UUID, err)
	}
	return nil
}

// Delete removes every legacy row of id (called only after the archive
// copy has been confirmed).
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.NewDelete().
		Model((*AuctionRow)(nil)).
		Where("uuid = ?", id.String()).
		Exec(ctx); err != nil {
		return fmt.Errorf("restore: deleting %s: %w", id, err)
	}
	return nil
}

func decodeRow(row AuctionRow) (auction.Auction, error) {
	var a auction.Auction
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &a); err != nil {
			return auction.Auction{}, err
		}
	}
	// The indexed columns are authoritative when the payload is sparse.
	if a.UUID == uuid.Nil {
		id, err := uuid.Parse(row.UUID)
		if err != nil {
			return auction.Auction{}, fmt.Errorf("bad uuid %q: %w", row.UUID, err)
		}
		a.UUID = id
	}
	if a.Tag == "" {
		a.Tag = row.Tag
	}
	if a.ItemName == "" {
		a.ItemName = row.ItemName
	}
	if a.HighestBid == 0 {
		a.HighestBid = row.HighestBid
	}
	if a.End.IsZero() {
		a.End = row.End
	}
	return a, nil
}
