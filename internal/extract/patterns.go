// Package extract turns free-form expense sentences into structured fields.
//
// Amounts and currencies always come from the ordered regular-expression
// rules in this file. Categories prefer confident annotator entities and
// fall back to the same kind of ordered rules.
package extract

import (
	"regexp"
	"strings"

	"spesevoce/internal/core"
)

// entityThreshold is the minimum score for an entity to name a category.
const entityThreshold = 0.7

// amountDigits matches an integer with optional thousands separators.
const amountDigits = `(\d+(?:,\d{3})*)`

// AmountRule matches an amount and optionally a currency token.
// Fixed forces the currency regardless of the token. When Fixed is empty the
// token (if captured) decides and the caller's default applies otherwise.
type AmountRule struct {
	Name    string
	Pattern *regexp.Regexp
	Fixed   core.Currency
}

// CategoryRule captures a category label in its first group.
type CategoryRule struct {
	Name    string
	Pattern *regexp.Regexp
}

var (
	nairaToken  = regexp.MustCompile(`(?i)^(naira|₦)$`)
	dollarToken = regexp.MustCompile(`(?i)^(dollars?|\$|usd)$`)
)

// DefaultAmountRules are tried in order, first match wins.
var DefaultAmountRules = []AmountRule{
	{Name: "naira", Pattern: regexp.MustCompile(`(?i)` + amountDigits + `\s*(naira|₦)`), Fixed: core.NGN},
	{Name: "dollar", Pattern: regexp.MustCompile(`(?i)` + amountDigits + `\s*(dollars?|\$|usd)`), Fixed: core.USD},
	{Name: "verb", Pattern: regexp.MustCompile(`(?i)(?:spent|paid|cost)\s*` + amountDigits + `\s*(naira|₦|dollars?|\$|usd)?`)},
	{Name: "preposition", Pattern: regexp.MustCompile(`(?i)` + amountDigits + `\s*(?:on|for)`)},
}

// CategoryVocabulary is the closed set of everyday categories recognised as bare words.
var CategoryVocabulary = []string{
	"food", "transport", "fuel", "groceries", "shopping",
	"entertainment", "bills", "rent", "utilities",
}

// DefaultCategoryRules are tried in order after entities, first match wins.
var DefaultCategoryRules = []CategoryRule{
	{Name: "preposition", Pattern: regexp.MustCompile(`(?i)(?:on|for)\s+(\w+)`)},
	{Name: "currency", Pattern: regexp.MustCompile(`(?i)(?:naira|₦|dollars?|\$)\s+(\w+)`)},
	{Name: "vocabulary", Pattern: regexp.MustCompile(`(?i)(` + strings.Join(CategoryVocabulary, "|") + `)`)},
}

// categoryEntityTypes are the entity types allowed to name a category.
var categoryEntityTypes = map[core.EntityType]bool{
	core.EntityOther:          true,
	core.EntityCommercialItem: true,
	core.EntityOrganization:   true,
}

// Patterns holds the rule sets. The zero value is not usable, use NewPatterns or Default.
type Patterns struct {
	amount   []AmountRule
	category []CategoryRule
}

// NewPatterns builds an extractor from custom rule sets.
func NewPatterns(amount []AmountRule, category []CategoryRule) *Patterns {
	return &Patterns{amount: amount, category: category}
}

// Default returns the extractor with the built-in English USD/NGN rules.
func Default() *Patterns {
	return NewPatterns(DefaultAmountRules, DefaultCategoryRules)
}

// ExtractAmount returns the first matching amount with commas stripped and its
// currency. def is used when the text carries no currency token. When nothing
// matches ok is false and cur is def.
func (p *Patterns) ExtractAmount(text string, def core.Currency) (amount string, cur core.Currency, ok bool) {
	for _, r := range p.amount {
		m := r.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount = strings.ReplaceAll(m[1], ",", "")
		switch {
		case r.Fixed != "":
			cur = r.Fixed
		case len(m) > 2 && m[2] != "":
			cur = currencyForToken(m[2], def)
		default:
			cur = def
		}
		return amount, cur, true
	}
	return "", def, false
}

// ExtractCategory picks the first confident item-like entity, then the ordered rules.
func (p *Patterns) ExtractCategory(text string, entities []core.Entity) (string, bool) {
	for _, e := range entities {
		if categoryEntityTypes[e.Type] && e.Score > entityThreshold {
			return strings.ToLower(e.Text), true
		}
	}
	for _, r := range p.category {
		if m := r.Pattern.FindStringSubmatch(text); m != nil && len(m) > 1 {
			return strings.ToLower(m[1]), true
		}
	}
	return "", false
}

func currencyForToken(token string, def core.Currency) core.Currency {
	switch {
	case nairaToken.MatchString(token):
		return core.NGN
	case dollarToken.MatchString(token):
		return core.USD
	}
	return def
}
