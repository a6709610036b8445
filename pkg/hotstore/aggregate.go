package hotstore

import "sort"

// ComputeAggregate derives the daily summary statistics from the
// matching auctions' sale prices, in the order they were observed.
// Median is the lower median (sorted element at index n/2); mode ties
// break on the first price seen; an empty input yields all zeros.
func ComputeAggregate(prices []int64) Aggregate {
	if len(prices) == 0 {
		return Aggregate{}
	}

	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, p := range prices {
		sum += p
	}

	counts := make(map[int64]int, len(prices))
	for _, p := range prices {
		counts[p]++
	}
	mode := prices[0]
	best := 0
	for _, p := range prices {
		if counts[p] > best {
			best = counts[p]
			mode = p
		}
	}

	return Aggregate{
		Max:    sorted[len(sorted)-1],
		Min:    sorted[0],
		Median: sorted[len(sorted)/2],
		Mean:   float64(sum) / float64(len(prices)),
		Mode:   mode,
		Volume: len(prices),
	}
}
