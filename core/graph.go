package core

// NodeType identifies the role a node plays in a rule graph.
type NodeType string

const (
	// NodeTrigger marks the entry point of an authored flow.
	NodeTrigger NodeType = "trigger"
	// NodeMessage holds a static message payload.
	NodeMessage NodeType = "message"
	// NodeCondition holds an ordered list of match conditions.
	NodeCondition NodeType = "condition"
	// NodeGenerative configures a generative fallback with its own instructions.
	NodeGenerative NodeType = "generative"
	// NodeAction holds an action payload interpreted by the management layer.
	NodeAction NodeType = "action"
)

// MatchType is the closed set of condition predicates. Unknown values are
// rejected when a graph is compiled, never silently treated as non-matching.
type MatchType string

const (
	// MatchContains matches when the message contains the value (case-insensitive).
	MatchContains MatchType = "contains"
	// MatchEquals matches when the message equals the value (case-insensitive).
	MatchEquals MatchType = "equals"
	// MatchStartsWith matches on a case-insensitive prefix.
	MatchStartsWith MatchType = "starts_with"
	// MatchEndsWith matches on a case-insensitive suffix.
	MatchEndsWith MatchType = "ends_with"
	// MatchRegex applies the stored pattern unmodified.
	MatchRegex MatchType = "regex"
)

// Condition pairs a match predicate with the response returned when it fires.
type Condition struct {
	Match    MatchType `json:"match"`
	Value    string    `json:"value"`
	Response string    `json:"response"`
}

// NodeData is the payload attached to a rule graph node. Which fields are
// meaningful depends on the node type.
type NodeData struct {
	Text         string      `json:"text,omitempty"`         // message / action nodes
	Conditions   []Condition `json:"conditions,omitempty"`   // condition nodes
	Instructions string      `json:"instructions,omitempty"` // generative nodes
}

// Node is a single element of an authored rule graph.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Data NodeData `json:"data"`
}

// RuleGraph is the authored decision structure of a bot. Node order and
// condition order are significant: they encode author intent about
// precedence and must be preserved exactly.
type RuleGraph struct {
	Nodes []Node `json:"nodes"`
}

// Clone returns a deep copy of the graph.
func (g *RuleGraph) Clone() *RuleGraph {
	clone := &RuleGraph{Nodes: make([]Node, len(g.Nodes))}
	copy(clone.Nodes, g.Nodes)
	for i, n := range g.Nodes {
		if len(n.Data.Conditions) > 0 {
			conds := make([]Condition, len(n.Data.Conditions))
			copy(conds, n.Data.Conditions)
			clone.Nodes[i].Data.Conditions = conds
		}
	}
	return clone
}
