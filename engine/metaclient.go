package engine

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// MetaServerClient is the process-wide connection to the metadata
// coordinator used by Stripe Readers to resolve stripe locations (spec
// §4.3 "Shared Metaserver Client"). It is created lazily at first use,
// reconfigured when the destination port changes, and stopped on
// CancelAll.
type MetaServerClient struct {
	mu      sync.Mutex
	host    string
	port    int
	started bool
	stopped bool

	seqNode *snowflake.Node
	seq     int64

	// headers mirrors the "From-Chunk-Server" header block the source
	// pre-installs on every outgoing request.
	headers map[string]string
}

func newMetaServerClient(host string, port int) (*MetaServerClient, error) {
	// Each client gets its own snowflake node, always with node id 1; it is
	// used only to derive the time-based starting sequence value below.
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	c := &MetaServerClient{
		host:    host,
		port:    port,
		seqNode: node,
		headers: map[string]string{"From-Chunk-Server": "true"},
	}
	c.seq = node.Generate().Int64()
	return c, nil
}

// nextSeq returns the next per-replicator-advanced sequence number,
// initialized to a randomized (snowflake-derived) starting value (spec
// §4.3).
func (c *MetaServerClient) nextSeq() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Reconfigure retargets the client at a new meta-server port, a no-op if
// the port is unchanged (spec §8 "changing the meta-server port... while
// no RS replicators are running transparently retargets the client").
func (c *MetaServerClient) Reconfigure(host string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host, c.port = host, port
}

func (c *MetaServerClient) Location() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host, c.port
}

// Stop marks the client stopped; used by CancelAll (spec §4.3, §9: the
// source signals this by passing port=-1 to the port-selecting function,
// which this rewrite gives an explicit name instead).
func (c *MetaServerClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *MetaServerClient) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// metaClientHolder lazily constructs the single process-wide
// MetaServerClient the first time a recovery replicator needs one, and
// reconfigures it in place on port changes rather than creating a new one
// for every RS replicator.
type metaClientHolder struct {
	mu     sync.Mutex
	client *MetaServerClient
	host   string
	port   int
}

// getOrCreate returns the shared client, creating it on first call and
// reconfiguring it if host/port have since changed.
func (h *metaClientHolder) getOrCreate(host string, port int) (*MetaServerClient, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		c, err := newMetaServerClient(host, port)
		if err != nil {
			return nil, err
		}
		h.client = c
		h.host, h.port = host, port
		return h.client, nil
	}
	if h.host != host || h.port != port {
		h.client.Reconfigure(host, port)
		h.host, h.port = host, port
	}
	return h.client, nil
}

// stopShared stops the shared client if one was ever created (spec §4.4
// CancelAll / §9 "make this an explicit named operation").
func (h *metaClientHolder) stopShared() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		h.client.Stop()
	}
}
