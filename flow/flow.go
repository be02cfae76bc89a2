// Package flow compiles authored rule graphs into executable decision
// functions. Compilation validates the closed node and match-type sets up
// front so malformed graphs are rejected at load time instead of silently
// failing to match; evaluation is a pure function over the compiled graph
// and a message string.
package flow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/botmesh/core"
)

// predicate reports whether a message satisfies one condition.
type predicate func(message string) bool

// compiledCondition pairs a predicate with its authored response.
type compiledCondition struct {
	match predicate
	reply string
}

// Graph is a compiled, immutable form of a rule graph. It is safe for
// concurrent evaluation.
type Graph struct {
	conditions    []compiledCondition
	hasGenerative bool
	instructions  string // first generative node's instructions, if any
}

// Compile validates and compiles a rule graph. It returns an error for nil
// or empty graphs, unknown node or match types, and invalid regex patterns.
func Compile(g *core.RuleGraph) (*Graph, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, fmt.Errorf("rule graph is empty")
	}

	compiled := &Graph{}
	for i, node := range g.Nodes {
		switch node.Type {
		case core.NodeTrigger, core.NodeMessage, core.NodeAction:
			// No evaluation behavior; payloads belong to the management layer.
		case core.NodeGenerative:
			if !compiled.hasGenerative {
				compiled.hasGenerative = true
				compiled.instructions = node.Data.Instructions
			}
		case core.NodeCondition:
			for j, cond := range node.Data.Conditions {
				p, err := compileCondition(cond)
				if err != nil {
					return nil, fmt.Errorf("node %d condition %d: %w", i, j, err)
				}
				compiled.conditions = append(compiled.conditions, compiledCondition{match: p, reply: cond.Response})
			}
		default:
			return nil, fmt.Errorf("node %d: unknown node type %q", i, node.Type)
		}
	}
	return compiled, nil
}

// compileCondition builds the predicate for a single condition. Textual match
// types compare lower-cased on both sides; regex applies the stored pattern
// unmodified.
func compileCondition(cond core.Condition) (predicate, error) {
	value := strings.ToLower(cond.Value)
	switch cond.Match {
	case core.MatchContains:
		return func(msg string) bool { return strings.Contains(strings.ToLower(msg), value) }, nil
	case core.MatchEquals:
		return func(msg string) bool { return strings.ToLower(msg) == value }, nil
	case core.MatchStartsWith:
		return func(msg string) bool { return strings.HasPrefix(strings.ToLower(msg), value) }, nil
	case core.MatchEndsWith:
		return func(msg string) bool { return strings.HasSuffix(strings.ToLower(msg), value) }, nil
	case core.MatchRegex:
		re, err := regexp.Compile(cond.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern: %w", err)
		}
		return re.MatchString, nil
	default:
		return nil, fmt.Errorf("unknown match type %q", cond.Match)
	}
}

// Evaluate scans condition nodes in graph order and conditions in authored
// order; the first condition whose predicate matches wins. Ties are broken
// by order, never by specificity. The boolean result is false when no
// condition matches.
func (g *Graph) Evaluate(message string) (string, bool) {
	for _, c := range g.conditions {
		if c.match(message) {
			return c.reply, true
		}
	}
	return "", false
}

// GenerativeInstructions returns the instructions of the first generative
// node, or the empty string when the graph has none.
func (g *Graph) GenerativeInstructions() string { return g.instructions }

// HasGenerativeNode reports whether the graph contains a generative node.
func (g *Graph) HasGenerativeNode() bool { return g.hasGenerative }
