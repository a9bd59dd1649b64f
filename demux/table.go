package demux

import "github.com/edonshumolli/satellite-quic-proxy/conn"

// connectionTable is the Demultiplexer's exclusive mapping from connection
// ID to Connection (spec.md §3's ConnectionTable, §5: "owned by the
// Demultiplexer and not exposed elsewhere"). Keys are the byte content of
// a destination connection ID, via protocol.ConnectionID.Key().
type connectionTable struct {
	byID map[string]*conn.Connection
}

func newConnectionTable() *connectionTable {
	return &connectionTable{byID: make(map[string]*conn.Connection)}
}

func (t *connectionTable) get(key string) (*conn.Connection, bool) {
	c, ok := t.byID[key]
	return c, ok
}

func (t *connectionTable) put(key string, c *conn.Connection) {
	t.byID[key] = c
}

func (t *connectionTable) delete(key string) {
	delete(t.byID, key)
}

func (t *connectionTable) len() int {
	return len(t.byID)
}

func (t *connectionTable) all() []*conn.Connection {
	out := make([]*conn.Connection, 0, len(t.byID))
	for _, c := range t.byID {
		out = append(out, c)
	}
	return out
}

// entry pairs a table key with its Connection, for reap passes that need
// to delete by key after inspecting the value.
type entry struct {
	key  string
	conn *conn.Connection
}

func (t *connectionTable) entries() []entry {
	out := make([]entry, 0, len(t.byID))
	for k, c := range t.byID {
		out = append(out, entry{key: k, conn: c})
	}
	return out
}
