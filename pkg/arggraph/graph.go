package arggraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// WordPrefix marks node keys that reference an EDU by its source segment id.
const WordPrefix = "word_"

// IsWordRef reports whether key is an EDU reference of the form word_<id>.
func IsWordRef(key string) bool {
	return strings.HasPrefix(key, WordPrefix)
}

// WordRef returns the graph's reference form for an EDU id.
func WordRef(eduID string) string {
	return WordPrefix + eduID
}

// NodeKind is the classification of a graph node, resolved once when the
// snapshot is decoded.
type NodeKind int

const (
	// NodeKindNone is a node without a declared n_type.
	NodeKindNone NodeKind = iota
	NodeKindJoint
	NodeKindProponent
	NodeKindOpponent
	NodeKindMixed
	// NodeKindUnknown is a declared n_type outside the vocabulary.
	NodeKindUnknown
)

var nodeKinds = map[string]NodeKind{
	"node_type_edu_join":  NodeKindJoint,
	"node_type_proponent": NodeKindProponent,
	"node_type_opponent":  NodeKindOpponent,
	"node_type_mixed":     NodeKindMixed,
}

// IsStatement reports whether nodes of this kind become adu elements.
func (k NodeKind) IsStatement() bool {
	return k == NodeKindProponent || k == NodeKindOpponent || k == NodeKindMixed
}

// RelationKind is the c_type of an edge.
type RelationKind int

const (
	// RelationNone is an edge without a declared c_type.
	RelationNone RelationKind = iota
	RelationSupport
	RelationSupportByExample
	RelationRebut
	RelationUndercut
	RelationAdditionalSource
	RelationUnknown
)

var relationKinds = map[string]RelationKind{
	"support":            RelationSupport,
	"support_by_example": RelationSupportByExample,
	"support-by-example": RelationSupportByExample,
	"rebut":              RelationRebut,
	"undercut":           RelationUndercut,
	"additional_source":  RelationAdditionalSource,
	"additional-source":  RelationAdditionalSource,
}

// Node is a graph node keyed by its opaque UI identifier.
type Node struct {
	Key  string
	Kind NodeKind
	// RawType holds the declared n_type, verbatim, when Kind is not NodeKindNone.
	RawType string
}

// EdgeAttrs are the attributes of one connection between two nodes.
type EdgeAttrs struct {
	Relation RelationKind
	// RawRelation holds the declared c_type when Relation is not RelationNone.
	RawRelation string
	// LabelNodeID is the node that carries this connection's label, if any.
	LabelNodeID string
	HasLabel    bool
}

// Graph is a decoded annotation graph snapshot. Edges are nested as
// source -> target -> connection id.
type Graph struct {
	Nodes map[string]Node
	Edges map[string]map[string]map[string]EdgeAttrs
}

// GraphJSON is the wire format the annotation UI stores for a graph.
// Attributes other than the ones listed are accepted and ignored.
type GraphJSON struct {
	Nodes map[string]NodeJSON                         `json:"nodes" jsonschema:"description=Graph nodes keyed by UI node id"`
	Edges map[string]map[string]map[string]EdgeJSON `json:"edges" jsonschema:"description=Edges nested as source -> target -> connection id"`
}

type NodeJSON struct {
	NType json.RawMessage `json:"n_type,omitempty" jsonschema:"description=node_type_edu_join | node_type_proponent | node_type_opponent | node_type_mixed"`
}

type EdgeJSON struct {
	CType       json.RawMessage `json:"c_type,omitempty" jsonschema:"description=support | support_by_example | rebut | undercut | additional_source"`
	LabelNodeID json.RawMessage `json:"label_node_id,omitempty" jsonschema:"description=Node carrying the label of this connection"`
}

// ParseGraph decodes a stored graph snapshot. Missing nodes or edges decode
// as empty maps.
func ParseGraph(data []byte) (*Graph, error) {
	var raw GraphJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	g := &Graph{
		Nodes: make(map[string]Node, len(raw.Nodes)),
		Edges: make(map[string]map[string]map[string]EdgeAttrs, len(raw.Edges)),
	}

	for key, n := range raw.Nodes {
		node := Node{Key: key}
		if declared, ok := rawValue(n.NType); ok {
			node.RawType = declared
			node.Kind = NodeKindUnknown
			if kind, known := nodeKinds[declared]; known {
				node.Kind = kind
			}
		}
		g.Nodes[key] = node
	}

	for source, targets := range raw.Edges {
		byTarget := make(map[string]map[string]EdgeAttrs, len(targets))
		for target, conns := range targets {
			byConn := make(map[string]EdgeAttrs, len(conns))
			for connID, e := range conns {
				var attrs EdgeAttrs
				if declared, ok := rawValue(e.CType); ok {
					attrs.RawRelation = declared
					attrs.Relation = RelationUnknown
					if kind, known := relationKinds[declared]; known {
						attrs.Relation = kind
					}
				}
				if label, ok := rawValue(e.LabelNodeID); ok {
					attrs.LabelNodeID = label
					attrs.HasLabel = true
				}
				byConn[connID] = attrs
			}
			byTarget[target] = byConn
		}
		g.Edges[source] = byTarget
	}

	return g, nil
}

// rawValue returns the string form of a JSON value. Absent values and null
// report false; strings are unquoted; anything else is kept as its JSON text.
func rawValue(msg json.RawMessage) (string, bool) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s, true
	}
	return string(msg), true
}
