// Package dsl parses the conditional choreography expression language.
//
// Grammar:
//
//	<action>:<move_name> if <variable> <operator> <threshold>
//	<action>:<move_name> otherwise
//
// Variables: sentiment, proximity, tempo, energy, volume
// Operators: >, <, >=, <=, ==
//
// Expressions that match no rule line at all are treated as plain text
// (an IPFS CID or a free-form description) and pass validation untouched.
package dsl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Condition is one parsed rule line.
type Condition struct {
	Action    string
	MoveName  string
	Variable  string
	Operator  string
	Threshold float64
	Otherwise bool
}

var validVariables = map[string]bool{
	"sentiment": true,
	"proximity": true,
	"tempo":     true,
	"energy":    true,
	"volume":    true,
}

var (
	conditionRe = regexp.MustCompile(`^(\w+):(\w+)\s+if\s+(\w+)\s*(>=|<=|==|>|<)\s*([\d.]+)$`)
	otherwiseRe = regexp.MustCompile(`^(\w+):(\w+)\s+otherwise$`)
)

func ruleLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// IsDSL reports whether the text contains at least one rule line.
func IsDSL(text string) bool {
	for _, l := range ruleLines(text) {
		if conditionRe.MatchString(l) || otherwiseRe.MatchString(l) {
			return true
		}
	}
	return false
}

// Parse converts DSL text into structured conditions. Any line that is not a
// valid rule invalidates the whole expression.
func Parse(text string) ([]Condition, error) {
	lines := ruleLines(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty expression")
	}

	conditions := make([]Condition, 0, len(lines))
	for _, line := range lines {
		if m := conditionRe.FindStringSubmatch(line); m != nil {
			if !validVariables[m[3]] {
				return nil, fmt.Errorf("unknown variable %q", m[3])
			}
			threshold, err := strconv.ParseFloat(m[5], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid threshold %q: %w", m[5], err)
			}
			conditions = append(conditions, Condition{
				Action:    m[1],
				MoveName:  m[2],
				Variable:  m[3],
				Operator:  m[4],
				Threshold: threshold,
			})
			continue
		}
		if m := otherwiseRe.FindStringSubmatch(line); m != nil {
			conditions = append(conditions, Condition{
				Action:    m[1],
				MoveName:  m[2],
				Otherwise: true,
			})
			continue
		}
		return nil, fmt.Errorf("invalid rule line %q", line)
	}
	return conditions, nil
}

// Validate checks DSL text and returns a user-facing error message, or empty
// when the text is valid. Plain text that is not DSL at all is valid.
func Validate(text string) string {
	if !IsDSL(text) {
		return ""
	}
	conditions, err := Parse(text)
	if err != nil {
		return "Invalid DSL syntax. Use: action:move_name if variable operator threshold"
	}

	otherwiseCount := 0
	for _, c := range conditions {
		if c.Otherwise {
			otherwiseCount++
		}
	}
	if otherwiseCount > 1 {
		return `Only one "otherwise" clause allowed.`
	}
	if otherwiseCount == 1 && !conditions[len(conditions)-1].Otherwise {
		return `"otherwise" must be the last clause.`
	}
	return ""
}

// Evaluate returns the first condition satisfied by the given variable
// values, falling back to the otherwise clause when nothing matches.
// The second return is false when no rule applies.
func Evaluate(conditions []Condition, values map[string]float64) (Condition, bool) {
	for _, c := range conditions {
		if c.Otherwise {
			continue
		}
		v, ok := values[c.Variable]
		if !ok {
			continue
		}
		if compare(v, c.Operator, c.Threshold) {
			return c, true
		}
	}
	for _, c := range conditions {
		if c.Otherwise {
			return c, true
		}
	}
	return Condition{}, false
}

func compare(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case "<":
		return v < threshold
	case ">=":
		return v >= threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}

// Hint is the syntax help shown alongside expression input errors.
const Hint = `Supports conditional choreography DSL:
  dance:chest_pop if sentiment > 0.8
  dance:wave if proximity < 2.0
  dance:idle otherwise

Variables: sentiment, proximity, tempo, energy, volume
Operators: >, <, >=, <=, ==
Also accepts plain IPFS CIDs or text descriptions.`
