package segment

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/grapat/backend/pkg/arggraph"
)

// Semantics is the annotation bundle semantics of ingested documents.
const Semantics = "argumentation"

// Document is an ingested text split into segments.
type Document struct {
	ID       string
	Segments []string
}

type rs3 struct {
	XMLName xml.Name `xml:"rst"`
	Body    struct {
		Segments []struct {
			Text string `xml:",chardata"`
		} `xml:"segment"`
	} `xml:"body"`
}

// DocumentID is the file base name without its extension.
func DocumentID(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Convert turns an uploaded file into a document. RST files (.rs3) yield the
// text of their /rst/body/segment elements; anything else yields its trimmed
// non-empty lines, skipping lines that start with '#'.
func Convert(filename string, contents []byte) (Document, error) {
	doc := Document{ID: DocumentID(filename)}
	if doc.ID == "" {
		return doc, fmt.Errorf("cannot derive a document id from %q", filename)
	}

	if strings.HasSuffix(strings.ToLower(filename), "rs3") {
		var tree rs3
		dec := xml.NewDecoder(bytes.NewReader(contents))
		if err := dec.Decode(&tree); err != nil {
			return doc, fmt.Errorf("failed to parse rs3 file %s: %w", filename, err)
		}
		for _, s := range tree.Body.Segments {
			doc.Segments = append(doc.Segments, s.Text)
		}
		return doc, CheckSegments(doc.Segments)
	}

	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		doc.Segments = append(doc.Segments, line)
	}
	return doc, CheckSegments(doc.Segments)
}

// CheckSegments reports the first segment that cannot be exported verbatim as
// EDU character data. Such texts are rejected at ingestion rather than
// altered; the error wraps arggraph.ErrMalformedText.
func CheckSegments(segments []string) error {
	for i, s := range segments {
		if err := arggraph.CheckCharData(s); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}
