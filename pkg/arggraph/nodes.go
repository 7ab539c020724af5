package arggraph

import (
	"encoding/xml"

	"github.com/grapat/backend/pkg/natsort"
)

// Joint merges several EDUs into one argumentative unit.
type Joint struct {
	XMLName xml.Name `xml:"joint"`
	ID      string   `xml:"id,attr"`
}

// ADU is an argumentative discourse unit (a statement node).
type ADU struct {
	XMLName xml.Name `xml:"adu"`
	ID      string   `xml:"id,attr"`
	Type    string   `xml:"type,attr"`
}

var aduTypes = map[NodeKind]string{
	NodeKindProponent: "pro",
	NodeKindOpponent:  "opp",
	NodeKindMixed:     "mixed",
}

// ClassifyNodes mints j1.. for joint nodes and a1.. for statement nodes, each
// pass in natural key order, and records the ids in ids. Nodes without a
// declared type are skipped. A declared type outside the vocabulary on a
// non-EDU node is a *MappingError.
func ClassifyNodes(nodes map[string]Node, ids IDTable) ([]Joint, []ADU, error) {
	keys := natsort.Keys(nodes)

	jm := newMinter(JointPrefix)
	var joints []Joint
	for _, key := range keys {
		if nodes[key].Kind != NodeKindJoint {
			continue
		}
		id := jm.mint()
		ids[key] = id
		joints = append(joints, Joint{ID: id})
	}

	am := newMinter(ADUPrefix)
	var adus []ADU
	for _, key := range keys {
		node := nodes[key]
		if node.Kind == NodeKindUnknown && !IsWordRef(key) {
			return nil, nil, &MappingError{Key: key, Value: node.RawType, Err: ErrUnknownNodeType}
		}
		typ, ok := aduTypes[node.Kind]
		if !ok {
			continue
		}
		id := am.mint()
		ids[key] = id
		adus = append(adus, ADU{ID: id, Type: typ})
	}

	return joints, adus, nil
}
