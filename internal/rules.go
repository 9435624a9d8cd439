package internal

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
)

// Rule maps a condition over the webhook payload to a topic. Conditions are
// govaluate expressions; fields can be referenced as bare top-level names
// (`type`), dotted paths resolved against the flattened payload
// (`data.serviceId`), or JSONPath selectors (`$.data.serviceId`).
type Rule struct {
	When string `yaml:"when"`
	Emit string `yaml:"emit"`
}

type compiledRule struct {
	emit      string
	expr      *govaluate.EvaluableExpression
	flatPaths map[string]string
	jsonPaths map[string]string
}

type RuleEngine struct {
	rules  []compiledRule
	strict bool
	logger *log.Logger
}

// RulesConfig represents the rule-specific parts of the configuration.
type RulesConfig struct {
	Rules  []Rule `yaml:"rules"`
	Strict bool   `yaml:"rules_strict"`
	Logger *log.Logger
}

func NewRuleEngine(cfg RulesConfig) (*RuleEngine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	rules := make([]compiledRule, 0, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		rewritten, flatPaths, jsonPaths := rewriteSelectors(rule.When)
		expr, err := govaluate.NewEvaluableExpression(rewritten)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, compiledRule{
			emit:      rule.Emit,
			expr:      expr,
			flatPaths: flatPaths,
			jsonPaths: jsonPaths,
		})
	}

	return &RuleEngine{rules: rules, strict: cfg.Strict, logger: logger}, nil
}

// Evaluate returns the topics whose rule condition matches the event.
func (r *RuleEngine) Evaluate(event Event) []string {
	if len(r.rules) == 0 {
		return nil
	}

	var object interface{}
	objectParsed := false

	topics := make([]string, 0, 1)
	for _, rule := range r.rules {
		params := make(map[string]interface{}, len(event.Data)+len(rule.flatPaths)+len(rule.jsonPaths))
		for key, value := range event.Data {
			params[key] = value
		}
		for name, path := range rule.flatPaths {
			if value, ok := event.Data[path]; ok {
				params[name] = value
			}
		}
		if len(rule.jsonPaths) > 0 && !objectParsed {
			objectParsed = true
			if err := json.Unmarshal(event.Payload, &object); err != nil {
				object = nil
			}
		}
		for name, path := range rule.jsonPaths {
			if object == nil {
				continue
			}
			value, err := jsonpath.Get(path, object)
			if err != nil {
				continue
			}
			params[name] = value
		}

		result, err := rule.expr.Evaluate(params)
		if err != nil {
			if r.strict {
				r.logger.Printf("rule eval failed: %v", err)
			}
			continue
		}
		ok, _ := result.(bool)
		if ok {
			topics = append(topics, rule.emit)
		}
	}
	return topics
}

// rewriteSelectors replaces JSONPath and dotted-path tokens in an expression
// with synthetic parameter names, so govaluate never sees a "." inside an
// identifier. String literals are left untouched.
func rewriteSelectors(when string) (string, map[string]string, map[string]string) {
	flatPaths := make(map[string]string)
	jsonPaths := make(map[string]string)

	var out strings.Builder
	runes := []rune(when)
	n := 0

	for i := 0; i < len(runes); {
		ch := runes[i]

		// skip string literals
		if ch == '"' || ch == '\'' {
			quote := ch
			out.WriteRune(ch)
			i++
			for i < len(runes) {
				out.WriteRune(runes[i])
				if runes[i] == '\\' && i+1 < len(runes) {
					i++
					out.WriteRune(runes[i])
					i++
					continue
				}
				if runes[i] == quote {
					i++
					break
				}
				i++
			}
			continue
		}

		if ch == '$' && i+1 < len(runes) && runes[i+1] == '.' {
			start := i
			i += 2
			for i < len(runes) && isPathRune(runes[i]) {
				i++
			}
			name := fmt.Sprintf("__sel%d", n)
			n++
			jsonPaths[name] = string(runes[start:i])
			out.WriteString("[" + name + "]")
			continue
		}

		if isIdentStart(ch) {
			start := i
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			dotted := false
			for i < len(runes) {
				if runes[i] == '.' && i+1 < len(runes) && isIdentStart(runes[i+1]) {
					dotted = true
					i += 2
					for i < len(runes) && isIdentRune(runes[i]) {
						i++
					}
					continue
				}
				if runes[i] == '[' {
					end := i + 1
					for end < len(runes) && runes[end] >= '0' && runes[end] <= '9' {
						end++
					}
					if end > i+1 && end < len(runes) && runes[end] == ']' {
						dotted = true
						i = end + 1
						continue
					}
				}
				break
			}
			token := string(runes[start:i])
			if dotted {
				name := fmt.Sprintf("__sel%d", n)
				n++
				flatPaths[name] = token
				out.WriteString("[" + name + "]")
			} else {
				out.WriteString(token)
			}
			continue
		}

		out.WriteRune(ch)
		i++
	}

	return out.String(), flatPaths, jsonPaths
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentRune(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isPathRune(r rune) bool {
	return isIdentRune(r) || r == '.' || r == '[' || r == ']'
}
