package extraction

import (
	"regexp"
	"strings"
)

// RuleScore is the confidence assigned to a keyword match.
const RuleScore = 0.7

type rule struct {
	pattern  *regexp.Regexp
	category string
}

var defaultRules = []rule{
	{regexp.MustCompile(`uber|滴滴|taxi|出行`), "交通出行"},
	{regexp.MustCompile(`starbucks|咖啡|luckin|瑞幸`), "餐饮"},
	{regexp.MustCompile(`taobao|tmall|拼多多|jd|京东`), "网购"},
}

// RuleCategorizer assigns a category from merchant and description keywords.
type RuleCategorizer struct {
	rules []rule
}

// NewRuleCategorizer returns a categorizer with the built-in keyword rules.
func NewRuleCategorizer() *RuleCategorizer {
	return &RuleCategorizer{rules: defaultRules}
}

// Categorize returns the first matching category and its score.
func (r *RuleCategorizer) Categorize(description string, merchant *string) (string, float64, bool) {
	text := description
	if merchant != nil {
		text = *merchant + " " + description
	}
	text = strings.ToLower(text)

	for _, rl := range r.rules {
		if rl.pattern.MatchString(text) {
			return rl.category, RuleScore, true
		}
	}
	return "", 0, false
}
