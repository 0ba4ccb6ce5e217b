package retrieval

import (
	"sort"
	"strings"

	"github.com/cartline-ai/cartline/internal/catalog"
)

// stopWords are excluded from keyword matching. They carry no product signal
// and would otherwise let filler words produce spurious overlap.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"me": true, "my": true, "i": true, "you": true, "your": true,
	"to": true, "of": true, "in": true, "on": true, "for": true,
	"with": true, "at": true, "by": true, "from": true, "some": true,
	"show": true, "find": true, "want": true, "need": true, "looking": true,
	"under": true, "over": true, "about": true, "please": true,
}

// tokenize splits text into lowercase alphanumeric tokens, dropping stop
// words and single characters.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() < 2 {
			current.Reset()
			return
		}
		tok := current.String()
		current.Reset()
		if !stopWords[tok] {
			tokens = append(tokens, tok)
		}
	}

	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// keywordMatch is one scored product from the overlap path.
type keywordMatch struct {
	Product catalog.Product
	Score   float64
}

// keywordSearch scores every product by the fraction of query tokens found
// in its title, description and features. Products with zero overlap are
// dropped. The score is a matched-token ratio in (0, 1] and is not
// comparable to vector similarity scores.
func keywordSearch(query string, cat *catalog.Catalog, limit int) []keywordMatch {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var matches []keywordMatch
	for _, p := range cat.All() {
		recordTokens := make(map[string]bool)
		for _, tok := range tokenize(p.EmbeddingText()) {
			recordTokens[tok] = true
		}

		matched := 0
		for _, tok := range queryTokens {
			if recordTokens[tok] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}

		matches = append(matches, keywordMatch{
			Product: p,
			Score:   float64(matched) / float64(len(queryTokens)),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Product.ID < matches[j].Product.ID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
