package normalizer

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// intentEnv is the evaluation environment exposed to compiled intent rules.
type intentEnv struct {
	Text string
}

type intentRule struct {
	tag     string
	program *vm.Program
}

// intentRuleSources maps each intent tag (§4.2.2) to a boolean expression
// over the lowercased message text. Compiled once at package init so
// per-message evaluation only runs the bytecode, not the parser.
var intentRuleSources = map[string]string{
	"buying_intent":      `contains(Text, "buy") or contains(Text, "purchase") or contains(Text, "looking to buy")`,
	"selling_intent":     `contains(Text, "sell") or contains(Text, "listing") or contains(Text, "list my")`,
	"rental_intent":      `contains(Text, "rent") or contains(Text, "lease") or contains(Text, "tenant")`,
	"investment_intent":  `contains(Text, "invest") or contains(Text, "rental income") or contains(Text, "cap rate")`,
	"financing_need":     `contains(Text, "mortgage") or contains(Text, "loan") or contains(Text, "pre-approv") or contains(Text, "financing")`,
	"agent_request":      `contains(Text, "agent") or contains(Text, "realtor") or contains(Text, "speak to someone")`,
	"valuation_request":  `contains(Text, "worth") or contains(Text, "appraisal") or contains(Text, "value my")`,
	"market_research":    `contains(Text, "market trend") or contains(Text, "comps") or contains(Text, "just looking") or contains(Text, "just browsing")`,
}

var intentRules = compileIntentRules()

func compileIntentRules() []intentRule {
	rules := make([]intentRule, 0, len(intentRuleSources))
	for tag, src := range intentRuleSources {
		program, err := expr.Compile(src, expr.Env(intentEnv{}), expr.AsBool())
		if err != nil {
			// A rule failing to compile is a programming error, not a
			// runtime condition; fail fast at init rather than silently
			// dropping a tag from the membership set.
			panic("normalizer: invalid intent rule for " + tag + ": " + err.Error())
		}
		rules = append(rules, intentRule{tag: tag, program: program})
	}
	return rules
}

// extractIntentSignals evaluates every compiled rule against text and
// returns the set of matching tags (§4.2.2: "membership is additive").
func extractIntentSignals(text string) []string {
	if text == "" {
		return nil
	}
	env := intentEnv{Text: strings.ToLower(text)}

	var tags []string
	for _, rule := range intentRules {
		out, err := expr.Run(rule.program, env)
		if err != nil {
			continue
		}
		if matched, _ := out.(bool); matched {
			tags = append(tags, rule.tag)
		}
	}
	return tags
}
