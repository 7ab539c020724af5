package arggraph

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
)

// Document is an arggraph document ready to be serialised. Field order is
// element order.
type Document struct {
	XMLName xml.Name `xml:"arggraph"`
	ID      string   `xml:"id,attr"`
	EDUs    []EDU
	Joints  []Joint
	ADUs    []ADU
	Edges   []Edge
}

// Build converts a graph snapshot and its EDU source into an arggraph
// document. The inputs are not modified.
func Build(documentID string, g *Graph, edus map[string]string) (*Document, error) {
	if g == nil {
		g = &Graph{}
	}
	ids := make(IDTable)

	eduElems, err := BuildEDURegistry(edus, ids)
	if err != nil {
		return nil, err
	}

	joints, adus, err := ClassifyNodes(g.Nodes, ids)
	if err != nil {
		return nil, err
	}

	buckets, err := ResolveEdges(g.Edges, ids)
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:     documentID,
		EDUs:   eduElems,
		Joints: joints,
		ADUs:   adus,
		Edges:  buckets.All(),
	}, nil
}

// Render serialises the document as indented UTF-8 XML with a declaration.
func (d *Document) Render() ([]byte, error) {
	if err := checkChars(d.ID); err != nil {
		return nil, fmt.Errorf("document id: %w", err)
	}
	for _, e := range d.EDUs {
		if err := CheckCharData(e.Text); err != nil {
			return nil, fmt.Errorf("edu %s: %w", e.ID, err)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode arggraph: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')

	return selfClose(buf.Bytes()), nil
}

var emptyElement = regexp.MustCompile(`<(arggraph|joint|adu|edge)((?: [a-z]+="[^"<>]*")*)></(?:arggraph|joint|adu|edge)>`)

// selfClose collapses the empty joint, adu and edge elements (and an empty
// root) into <name .../>. Only the part after the last EDU is rewritten, so
// EDU texts are never touched.
func selfClose(out []byte) []byte {
	start := bytes.LastIndex(out, []byte("</edu>"))
	if start < 0 {
		start = 0
	}
	tail := emptyElement.ReplaceAll(out[start:], []byte("<$1$2/>"))
	return append(out[:start:start], tail...)
}

// Export runs the whole transformation and returns the serialised document.
func Export(documentID string, g *Graph, edus map[string]string) ([]byte, error) {
	doc, err := Build(documentID, g, edus)
	if err != nil {
		return nil, err
	}
	return doc.Render()
}
