package retrieval

import "strings"

// SearchPath names which retrieval path produced a result set. Scores from
// the two paths live on different scales and are never compared.
type SearchPath string

const (
	// PathVector means the semantic index served the query.
	PathVector SearchPath = "vector"
	// PathKeyword means the token-overlap fallback served the query after
	// the vector path failed, timed out or came back empty.
	PathKeyword SearchPath = "keyword"
)

// Filters are optional post-filters applied to whichever candidate set a
// search produced. Nil fields are unset.
type Filters struct {
	MaxPrice  *float64 `json:"max_price,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
}

// Result is one ranked product match.
type Result struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"name"`
	Price     float64 `json:"price"`
	Rating    float64 `json:"rating"`
	Score     float64 `json:"score"`
}

// Response is a complete search answer: the ranked matches, their price
// summary and the path that produced them.
type Response struct {
	Results   []Result   `json:"results"`
	Aggregate Summary    `json:"aggregate"`
	Path      SearchPath `json:"path"`
}

// normalizeQuery lowercases, trims and collapses interior whitespace so that
// trivially different spellings of the same query share a cache entry.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
