package chat

import (
	"regexp"
	"strings"
)

// Intent is the classified purpose of a user message.
type Intent string

const (
	// IntentProduct routes to product search.
	IntentProduct Intent = "product"
	// IntentOrder routes to the order-lookup collaborator.
	IntentOrder Intent = "order"
	// IntentUnknown covers greetings and messages with no actionable
	// content.
	IntentUnknown Intent = "unknown"
)

// greetings are messages with no actionable content on their own.
var greetings = map[string]bool{
	"hello": true, "hi": true, "hey": true, "yo": true,
	"thanks": true, "thank": true, "you": true, "ok": true, "okay": true,
	"good": true, "morning": true, "afternoon": true, "evening": true,
	"bye": true, "goodbye": true,
}

// orderTokens indicate an order or analytics request.
var orderTokens = map[string]bool{
	"order": true, "orders": true, "status": true, "priority": true,
	"shipping": true, "delivery": true, "track": true, "tracking": true,
	"purchase": true, "purchased": true, "bought": true,
	"sales": true, "profit": true, "refund": true,
}

// customerIDPattern matches the five-digit customer identifiers the order
// collaborator uses. Shorter numbers (prices, quantities) do not match.
var customerIDPattern = regexp.MustCompile(`\b\d{5}\b`)

// rule pairs a pure predicate over normalized text with the intent it
// selects.
type rule struct {
	name    string
	matches func(text string) bool
	intent  Intent
}

// Classifier assigns an intent to a message by evaluating a fixed, ordered
// rule list. The first matching rule wins; the ordering is load-bearing
// because order and product vocabularies overlap (a product name can
// contain digits).
type Classifier struct {
	rules []rule
}

// NewClassifier builds the default rule set. Evaluation order: empty and
// greeting-only messages are unknown, order-indicative tokens or a
// customer identifier select the order path, everything else is a product
// query.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []rule{
			{
				name:    "empty",
				matches: func(text string) bool { return text == "" },
				intent:  IntentUnknown,
			},
			{
				name:    "greeting",
				matches: isGreetingOnly,
				intent:  IntentUnknown,
			},
			{
				name:    "order_tokens",
				matches: hasOrderToken,
				intent:  IntentOrder,
			},
			{
				name:    "customer_id",
				matches: func(text string) bool { return customerIDPattern.MatchString(text) },
				intent:  IntentOrder,
			},
			{
				name:    "default_product",
				matches: func(string) bool { return true },
				intent:  IntentProduct,
			},
		},
	}
}

// Classify returns the intent for a message along with the name of the
// rule that decided it.
func (c *Classifier) Classify(message string) (Intent, string) {
	text := normalizeMessage(message)
	for _, r := range c.rules {
		if r.matches(text) {
			return r.intent, r.name
		}
	}
	// The default rule always matches; this is unreachable.
	return IntentUnknown, "none"
}

func normalizeMessage(message string) string {
	return strings.Join(strings.Fields(strings.ToLower(message)), " ")
}

// messageWords splits normalized text into words stripped of punctuation.
func messageWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
}

func isGreetingOnly(text string) bool {
	words := messageWords(text)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !greetings[w] {
			return false
		}
	}
	return true
}

func hasOrderToken(text string) bool {
	for _, w := range messageWords(text) {
		if orderTokens[w] {
			return true
		}
	}
	return false
}
