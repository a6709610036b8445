package query

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sbauctions/archive/pkg/apperr"
	"github.com/sbauctions/archive/pkg/auction"
	"github.com/sbauctions/archive/pkg/config"
)

// Preview is one row of the recent-sales overview.
type Preview struct {
	UUID       uuid.UUID `json:"uuid"`
	ItemName   string    `json:"item_name"`
	Tag        string    `json:"tag"`
	HighestBid int64     `json:"highest_bid"`
	End        time.Time `json:"end"`
	Seller     uuid.UUID `json:"seller"`
	PlayerName string    `json:"player_name,omitempty"`
}

// RecentOverview returns the 12 most recent sales of tag matching the
// raw filter. The last hour is tried first; when it has fewer than 12,
// the window widens to two weeks. Seller names resolve through the
// player-name service; a failed resolution leaves the name empty.
func (e *Engine) RecentOverview(ctx context.Context, tag string, raw map[string]string) ([]Preview, error) {
	pred, err := e.compiler.Compile(raw)
	if err != nil {
		return nil, apperr.InvalidInput("query.RecentOverview", err)
	}

	now := e.now().UTC()
	recent, err := e.soldWindow(ctx, tag, now.Add(-config.RecentOverviewWindow), now, pred, config.RecentOverviewCount)
	if err != nil {
		return nil, err
	}
	if len(recent) < config.RecentOverviewCount {
		recent, err = e.soldWindow(ctx, tag, now.Add(-config.RecentOverviewWiden), now, pred, config.RecentOverviewCount)
		if err != nil {
			return nil, err
		}
	}

	previews := make([]Preview, 0, len(recent))
	sellers := make([]uuid.UUID, 0, len(recent))
	for _, a := range recent {
		previews = append(previews, Preview{
			UUID:       a.UUID,
			ItemName:   a.ItemName,
			Tag:        a.Tag,
			HighestBid: a.HighestBid,
			End:        a.End,
			Seller:     a.SellerUUID,
		})
		sellers = append(sellers, a.SellerUUID)
	}

	if e.names != nil && len(sellers) > 0 {
		resolved, err := e.names.ResolveBatch(ctx, sellers)
		if err != nil {
			log.Printf("query: player-name resolution failed, serving uuids: %v", err)
		}
		for i := range previews {
			previews[i].PlayerName = resolved[previews[i].Seller]
		}
	}
	return previews, nil
}

// soldWindow collects up to limit sold auctions of tag with end in
// (t0, t1], newest first.
func (e *Engine) soldWindow(ctx context.Context, tag string, t0, t1 time.Time, pred func(*auction.Auction) bool, limit int) ([]auction.Auction, error) {
	sold := true
	it, err := e.hot.Range(ctx, tag, t0, t1, &sold, 0)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []auction.Auction
	for len(out) < limit {
		a, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if pred != nil && !pred(&a) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
