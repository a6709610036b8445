package coldstore

import (
	"encoding/binary"
	"fmt"

	"github.com/sbauctions/archive/pkg/bloom"
)

// tagIndex is one tag's archive index: the bloom filter over its
// archived uuids plus the set of sealed (year, month) pairs.
type tagIndex struct {
	filter *bloom.Filter
	months map[Month]struct{}
}

func newTagIndex(capacity uint64, fpr float64) *tagIndex {
	return &tagIndex{
		filter: bloom.New(capacity, fpr),
		months: make(map[Month]struct{}),
	}
}

func (t *tagIndex) addMonth(year, month int) {
	t.months[Month{Year: year, Month: month}] = struct{}{}
}

// serialize packs the month set ahead of the bloom filter bytes:
// uint32 count, then (uint16 year, uint8 month) per entry.
func (t *tagIndex) serialize() []byte {
	out := make([]byte, 0, 4+3*len(t.months)+64)
	out = binary.BigEndian.AppendUint32(out, uint32(len(t.months)))
	for m := range t.months {
		out = binary.BigEndian.AppendUint16(out, uint16(m.Year))
		out = append(out, byte(m.Month))
	}
	return append(out, t.filter.Serialize()...)
}

func deserializeTagIndex(data []byte) (*tagIndex, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("truncated tag index (%d bytes)", len(data))
	}
	count := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < count*3 {
		return nil, fmt.Errorf("truncated month set, want %d entries", count)
	}

	months := make(map[Month]struct{}, count)
	for i := uint32(0); i < count; i++ {
		year := int(binary.BigEndian.Uint16(data[i*3 : i*3+2]))
		month := int(data[i*3+2])
		months[Month{Year: year, Month: month}] = struct{}{}
	}

	filter, err := bloom.Deserialize(data[count*3:])
	if err != nil {
		return nil, err
	}
	return &tagIndex{filter: filter, months: months}, nil
}
