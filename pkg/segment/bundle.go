package segment

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
)

type tokenRange struct {
	XMLName xml.Name `xml:"token_range"`
	ID      string   `xml:"id,attr"`
	Text    string   `xml:",cdata"`
}

type entity struct {
	XMLName xml.Name `xml:"entity"`
	ID      string   `xml:"id,attr"`
	Ranges  []tokenRange
}

type annotationBundle struct {
	XMLName   xml.Name `xml:"annotation_bundle"`
	ID        string   `xml:"id,attr"`
	Semantics string   `xml:"semantics,attr"`
	Entity    entity
}

// BundleXML renders the segments of a document as an annotation bundle, the
// format the annotation UI loads. Segment ids are positions starting at 0.
func BundleXML(documentID, entityID string, segments []string) ([]byte, error) {
	bundle := annotationBundle{
		ID:        "ab-" + documentID,
		Semantics: Semantics,
		Entity:    entity{ID: entityID},
	}
	if err := CheckSegments(segments); err != nil {
		return nil, err
	}
	for i, s := range segments {
		bundle.Entity.Ranges = append(bundle.Entity.Ranges, tokenRange{ID: strconv.Itoa(i), Text: s})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return nil, fmt.Errorf("failed to encode annotation bundle: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}
