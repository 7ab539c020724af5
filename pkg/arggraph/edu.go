package arggraph

import (
	"encoding/xml"
	"fmt"

	"github.com/grapat/backend/pkg/natsort"
)

// EDU is an elementary discourse unit in the exported document.
type EDU struct {
	XMLName xml.Name `xml:"edu"`
	ID      string   `xml:"id,attr"`
	Text    string   `xml:",cdata"`
}

// BuildEDURegistry mints e1..eN for the EDU source in natural key order and
// records word_<id> -> eK in ids. Texts that cannot be embedded as CDATA fail
// the whole registry.
func BuildEDURegistry(edus map[string]string, ids IDTable) ([]EDU, error) {
	m := newMinter(EDUPrefix)
	out := make([]EDU, 0, len(edus))

	for _, eduID := range natsort.Keys(edus) {
		text := edus[eduID]
		if err := CheckCharData(text); err != nil {
			return nil, fmt.Errorf("edu %s: %w", eduID, err)
		}
		id := m.mint()
		ids[WordRef(eduID)] = id
		out = append(out, EDU{ID: id, Text: text})
	}

	return out, nil
}
