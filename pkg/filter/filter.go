// Package filter is the boundary to the filter-expression engine. The
// query layer only consumes compiled predicates; the algebra behind a
// Compiler is its own business. MapCompiler is the built-in default that
// understands the reserved time keys plus plain key=value equality.
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sbauctions/archive/pkg/auction"
)

// Reserved filter keys handled by every compiler.
const (
	KeyEndAfter  = "EndAfter"
	KeyEndBefore = "EndBefore"
	KeyDays      = "days"
)

// Predicate is a compiled filter applied to decoded auctions.
type Predicate func(*auction.Auction) bool

// Compiler turns a raw string filter map into a Predicate.
type Compiler interface {
	Compile(raw map[string]string) (Predicate, error)
}

// All matches every auction.
func All(*auction.Auction) bool { return true }

// FilterKey canonicalizes a raw filter map into the summary-cache key:
// keys and values concatenated in key-sorted order, excluding EndAfter
// and EndBefore. It is derived purely from the raw map, never from the
// compiled predicate.
func FilterKey(raw map[string]string) string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		if k == KeyEndAfter || k == KeyEndBefore {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(raw[k])
	}
	return b.String()
}

// ParseTime parses a reserved time value: unix seconds first, then the
// common date layouts.
func ParseTime(v string) (time.Time, error) {
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("filter: unparseable time %q", v)
}

// MapCompiler compiles plain key=value equality filters against the
// auction's top-level fields and its flattened attribute map.
type MapCompiler struct{}

// Compile builds a conjunction of matchers, one per entry in raw.
// Unknown keys fall through to the flattened attribute map; a key no
// auction carries simply never matches.
func (MapCompiler) Compile(raw map[string]string) (Predicate, error) {
	type matcher func(*auction.Auction) bool
	var matchers []matcher

	for k, v := range raw {
		k, v := k, v
		switch k {
		case KeyDays:
			// Window-shaping only; handled by the caller when it picks
			// the query range.
			continue
		case KeyEndAfter:
			t, err := ParseTime(v)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, func(a *auction.Auction) bool { return a.End.After(t) })
		case KeyEndBefore:
			t, err := ParseTime(v)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, func(a *auction.Auction) bool { return !a.End.After(t) })
		case "tier", "Tier":
			matchers = append(matchers, func(a *auction.Auction) bool { return strings.EqualFold(a.Tier, v) })
		case "category", "Category":
			matchers = append(matchers, func(a *auction.Auction) bool { return strings.EqualFold(a.Category, v) })
		case "bin", "Bin":
			want := strings.EqualFold(v, "true")
			matchers = append(matchers, func(a *auction.Auction) bool { return a.BIN == want })
		case "ItemName":
			matchers = append(matchers, func(a *auction.Auction) bool { return a.ItemName == v })
		default:
			matchers = append(matchers, func(a *auction.Auction) bool {
				if a.Attributes != nil && a.Attributes[k] == v {
					return true
				}
				if a.Enchantments != nil {
					if lvl, err := strconv.Atoi(v); err == nil {
						return a.Enchantments[k] == lvl
					}
				}
				return false
			})
		}
	}

	return func(a *auction.Auction) bool {
		for _, m := range matchers {
			if !m(a) {
				return false
			}
		}
		return true
	}, nil
}
