package auction

import (
	"encoding/hex"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// zeroItemUUIDPrefix is the prefix used to synthesize an item uuid when the
// flattened NBT has no "uuid" attribute.
const zeroItemUUIDPrefix = "00000000-0000-0000-0000-"

// Encode converts an ingest-side Auction into its stored wire shape,
// deriving color, item uid, item uuid, highest bidder, is-sold, and the
// time-bucket key. Fields absent on a sparse "sold" ingress event (start,
// count, item_created_at, ...) are left at their zero value - retrofit
// fills them in later (see pkg/ingest).
func Encode(a Auction) StoredAuction {
	s := StoredAuction{
		UUID:          a.UUID,
		Tag:           a.Tag,
		ItemName:      a.ItemName,
		Category:      a.Category,
		Tier:          a.Tier,
		BIN:           a.BIN,
		StartingBid:   a.StartingBid,
		SellerUUID:    a.SellerUUID,
		CoopMembers:   a.CoopMembers,
		Start:         a.Start,
		End:           a.End,
		ItemCreatedAt: a.ItemCreatedAt,
		RawItemBytes:  a.RawItemBytes,
		Attributes:    a.Attributes,
		Enchantments:  dedupUnknownEnchant(a.Enchantments),
		Count:         a.Count,
		Bids:          normalizeBids(a.Bids),
	}

	s.ProfileID = defaultProfileID(a.ProfileID, a.SellerUUID)
	s.Color = deriveColor(a.Attributes)
	s.ItemUID = deriveItemUID(a.Attributes, a.UUID)
	s.ItemUUID = deriveItemUUID(a.Attributes, s.ItemUID)

	s.HighestBid, s.HighestBidder = highestBid(a.Bids)
	if s.HighestBidder == uuid.Nil {
		s.HighestBidder = syntheticBidderGUID(a.UUID)
	}
	if a.HighestBid > s.HighestBid {
		s.HighestBid = a.HighestBid
	}

	s.IsSold = s.HighestBid > 0 && !s.End.After(time.Now())
	s.TimeKey = Bucket(s.Tag, s.End)

	return s
}

// Decode converts a stored record back into the domain Auction. It is a
// pure projection: decode(encode(a)) preserves bids, enchantments, and
// flattened attributes, up to the legal rewrites of ProfileID,
// HighestBidder, and ItemUID that Encode performs when the source values
// were defaults.
func Decode(s StoredAuction) Auction {
	return Auction{
		UUID:          s.UUID,
		Tag:           s.Tag,
		ItemName:      s.ItemName,
		Category:      s.Category,
		Tier:          s.Tier,
		BIN:           s.BIN,
		StartingBid:   s.StartingBid,
		HighestBid:    s.HighestBid,
		HighestBidder: s.HighestBidder,
		SellerUUID:    s.SellerUUID,
		ProfileID:     s.ProfileID,
		CoopMembers:   s.CoopMembers,
		Start:         s.Start,
		End:           s.End,
		ItemCreatedAt: s.ItemCreatedAt,
		RawItemBytes:  s.RawItemBytes,
		Attributes:    s.Attributes,
		Enchantments:  s.Enchantments,
		Count:         s.Count,
		Color:         s.Color,
		ItemUID:       s.ItemUID,
		ItemUUID:      s.ItemUUID,
		IsSold:        s.IsSold,
		Bids:          s.Bids,
	}
}

// defaultProfileID is the single defaulting rule used by both encode
// paths: fall back to seller/bidder when the profile id is absent.
func defaultProfileID(profileID, fallback uuid.UUID) uuid.UUID {
	if profileID == uuid.Nil {
		return fallback
	}
	return profileID
}

// normalizeBids applies the bid-level profile defaulting and rebases
// non-UTC ingress timestamps, without mutating the caller's slice.
func normalizeBids(bids []Bid) []Bid {
	if len(bids) == 0 {
		return bids
	}
	out := make([]Bid, len(bids))
	copy(out, bids)
	for i := range out {
		out[i].ProfileID = defaultProfileID(out[i].ProfileID, out[i].BidderUUID)
		out[i].Timestamp = out[i].Timestamp.UTC()
	}
	return out
}

func deriveColor(attrs map[string]string) string {
	if attrs == nil {
		return ""
	}
	return attrs["color"]
}

// deriveItemUID hex-parses the flattened "uid" attribute; if absent or
// unparsable it falls back to a small positive random value seeded from
// the auction uuid so repeated encodes of the same record are stable.
func deriveItemUID(attrs map[string]string, auctionUUID uuid.UUID) int64 {
	if attrs != nil {
		if raw, ok := attrs["uid"]; ok && raw != "" {
			if b, err := hex.DecodeString(padHex(raw)); err == nil {
				var v int64
				for _, by := range b {
					v = v<<8 | int64(by)
				}
				if v != 0 {
					return v
				}
			}
		}
	}
	r := rand.New(rand.NewSource(seedFromUUID(auctionUUID)))
	return int64(r.Int31())
}

func padHex(s string) string {
	if len(s)%2 == 1 {
		return "0" + s
	}
	return s
}

// deriveItemUUID uses the flattened "uuid" attribute when present,
// otherwise synthesizes "0000...-{uid}".
func deriveItemUUID(attrs map[string]string, itemUID int64) uuid.UUID {
	if attrs != nil {
		if raw, ok := attrs["uuid"]; ok && raw != "" {
			if u, err := uuid.Parse(raw); err == nil {
				return u
			}
		}
	}
	synthetic := zeroItemUUIDPrefix + hex.EncodeToString(int64ToBytes(itemUID))
	if u, err := uuid.Parse(padUUIDString(synthetic)); err == nil {
		return u
	}
	return uuid.Nil
}

func padUUIDString(s string) string {
	// zeroItemUUIDPrefix already supplies 24 of the 36 chars; pad/trim
	// the trailing group to exactly 12 hex chars, keeping the low-order
	// end of the uid when trimming.
	const want = 36
	if len(s) > want {
		return s[:len(zeroItemUUIDPrefix)] + s[len(s)-(want-len(zeroItemUUIDPrefix)):]
	}
	for len(s) < want {
		s += "0"
	}
	return s
}

func int64ToBytes(v int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// highestBid returns the max-amount bid's amount and bidder, or (0, nil)
// for an empty bid list.
func highestBid(bids []Bid) (int64, uuid.UUID) {
	var maxAmount int64
	var bidder uuid.UUID
	for _, b := range bids {
		if b.Amount > maxAmount {
			maxAmount = b.Amount
			bidder = b.BidderUUID
		}
	}
	return maxAmount, bidder
}

// syntheticBidderGUID produces a deterministic non-zero guid for
// auctions with no bids - the hot store disallows an all-zero secondary
// index value on highest_bidder.
func syntheticBidderGUID(auctionUUID uuid.UUID) uuid.UUID {
	r := rand.New(rand.NewSource(seedFromUUID(auctionUUID)))
	var b [16]byte
	r.Read(b[:])
	u, _ := uuid.FromBytes(b[:])
	return u
}

func seedFromUUID(u uuid.UUID) int64 {
	var v int64
	for i := 0; i < 8; i++ {
		v = v<<8 | int64(u[i])
	}
	if v == 0 {
		v = 1
	}
	return v
}

// dedupUnknownEnchant mitigates the collision where multiple distinct
// enchantment identifiers all decode to the literal name "unknown": it
// keeps the highest level seen under that name rather than letting later
// entries silently clobber earlier ones.
func dedupUnknownEnchant(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for name, level := range in {
		if name != "unknown" {
			out[name] = level
			continue
		}
		if cur, ok := out["unknown"]; !ok || level > cur {
			out["unknown"] = level
		}
	}
	return out
}
