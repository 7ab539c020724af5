package arggraph

import "strconv"

// Prefixes of the identifier spaces minted during an export. Each space is
// dense and starts at 1.
const (
	EDUPrefix   = "e"
	JointPrefix = "j"
	ADUPrefix   = "a"
	EdgePrefix  = "c"
)

// IDTable maps graph node keys (including word_<id> EDU references and label
// nodes) to the xml ids minted for them. It lives for a single export.
type IDTable map[string]string

type minter struct {
	prefix string
	next   int
}

func newMinter(prefix string) *minter {
	return &minter{prefix: prefix, next: 1}
}

func (m *minter) mint() string {
	id := m.prefix + strconv.Itoa(m.next)
	m.next++
	return id
}
