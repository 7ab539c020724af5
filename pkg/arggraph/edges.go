package arggraph

import (
	"encoding/xml"
	"strings"

	"github.com/grapat/backend/pkg/natsort"
)

// SegmentationType is the edge type of structural edges out of EDUs and joints.
const SegmentationType = "seg"

var relationTypes = map[RelationKind]string{
	RelationSupport:          "sup",
	RelationSupportByExample: "exa",
	RelationRebut:            "reb",
	RelationUndercut:         "und",
	RelationAdditionalSource: "add",
}

// Edge is an exported edge. Src and trg refer to minted ids.
type Edge struct {
	XMLName xml.Name `xml:"edge"`
	ID      string   `xml:"id,attr"`
	Source  string   `xml:"src,attr"`
	Target  string   `xml:"trg,attr"`
	Type    string   `xml:"type,attr"`
}

// EdgeRef identifies one connection in the nested edge map.
type EdgeRef struct {
	Source string
	Target string
	ConnID string
}

func (r EdgeRef) String() string {
	return r.Source + "->" + r.Target + "#" + r.ConnID
}

type flatEdge struct {
	EdgeRef
	Attrs EdgeAttrs
}

// EdgeBuckets holds resolved edges in the three output groups, each in
// traversal order.
type EdgeBuckets struct {
	ToEDU       []Edge
	ToJoint     []Edge
	ToStatement []Edge
}

// All returns the buckets concatenated in output order.
func (b EdgeBuckets) All() []Edge {
	all := make([]Edge, 0, b.Len())
	all = append(all, b.ToEDU...)
	all = append(all, b.ToJoint...)
	return append(all, b.ToStatement...)
}

func (b EdgeBuckets) Len() int {
	return len(b.ToEDU) + len(b.ToJoint) + len(b.ToStatement)
}

// IsGarbage reports whether an edge is a leftover of graph editing: it has no
// relation kind and does not start at an EDU.
func IsGarbage(source string, attrs EdgeAttrs) bool {
	return attrs.Relation == RelationNone && !IsWordRef(source)
}

// flattenEdges walks source, target and connection id, each level in natural
// order, and drops garbage edges.
func flattenEdges(edges map[string]map[string]map[string]EdgeAttrs) []flatEdge {
	var flat []flatEdge
	for _, source := range natsort.Keys(edges) {
		targets := edges[source]
		for _, target := range natsort.Keys(targets) {
			conns := targets[target]
			for _, connID := range natsort.Keys(conns) {
				attrs := conns[connID]
				if IsGarbage(source, attrs) {
					continue
				}
				flat = append(flat, flatEdge{
					EdgeRef: EdgeRef{Source: source, Target: target, ConnID: connID},
					Attrs:   attrs,
				})
			}
		}
	}
	return flat
}

// ResolveEdges assigns c1.. to every non-garbage edge and sorts the edges into
// buckets. The first pass allocates edge ids and registers label nodes under
// the id of the edge they label; the second pass only reads the closed table.
// ids must already contain the EDU, joint and statement ids.
func ResolveEdges(edges map[string]map[string]map[string]EdgeAttrs, ids IDTable) (EdgeBuckets, error) {
	flat := flattenEdges(edges)

	m := newMinter(EdgePrefix)
	edgeIDs := make(map[EdgeRef]string, len(flat))
	for _, e := range flat {
		id := m.mint()
		edgeIDs[e.EdgeRef] = id
		if e.Attrs.HasLabel {
			ids[e.Attrs.LabelNodeID] = id
		}
	}

	var b EdgeBuckets
	for _, e := range flat {
		src, ok := ids[e.Source]
		if !ok {
			return EdgeBuckets{}, &MappingError{Key: e.String(), Value: e.Source, Err: ErrUnresolvedEndpoint}
		}
		trg, ok := ids[e.Target]
		if !ok {
			return EdgeBuckets{}, &MappingError{Key: e.String(), Value: e.Target, Err: ErrUnresolvedEndpoint}
		}

		edge := Edge{ID: edgeIDs[e.EdgeRef], Source: src, Target: trg, Type: SegmentationType}
		switch {
		case IsWordRef(e.Source):
			b.ToEDU = append(b.ToEDU, edge)
		case strings.HasPrefix(src, JointPrefix):
			b.ToJoint = append(b.ToJoint, edge)
		default:
			typ, known := relationTypes[e.Attrs.Relation]
			if !known {
				return EdgeBuckets{}, &MappingError{Key: e.String(), Value: e.Attrs.RawRelation, Err: ErrUnknownRelationType}
			}
			edge.Type = typ
			b.ToStatement = append(b.ToStatement, edge)
		}
	}

	return b, nil
}
