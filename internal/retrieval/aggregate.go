package retrieval

// Summary holds price statistics over a result set. The price fields are
// nil when the set is empty, which is an explicit no-data marker rather
// than a zero value.
type Summary struct {
	Count        int      `json:"count"`
	AveragePrice *float64 `json:"average_price"`
	MinPrice     *float64 `json:"min_price"`
	MaxPrice     *float64 `json:"max_price"`
}

// Aggregate computes count and price statistics for a ranked result set.
func Aggregate(results []Result) Summary {
	if len(results) == 0 {
		return Summary{Count: 0}
	}

	min := results[0].Price
	max := results[0].Price
	total := 0.0
	for _, r := range results {
		total += r.Price
		if r.Price < min {
			min = r.Price
		}
		if r.Price > max {
			max = r.Price
		}
	}
	avg := total / float64(len(results))

	return Summary{
		Count:        len(results),
		AveragePrice: &avg,
		MinPrice:     &min,
		MaxPrice:     &max,
	}
}
