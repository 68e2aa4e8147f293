package engine

// Engine is the process-wide context the Factory is built from: counters,
// registry, configuration, and collaborators, threaded explicitly rather
// than held in hidden package-level globals (spec §9 "process-wide
// singletons... model as an engine context value owned by the service at
// startup").
type Engine struct {
	counters *Counters
	registry *Registry
	config   *ConfigStore
	store    ChunkStore
	bufMgr   BufferManager
	reqSrc   RequestSource
	logger   Logger

	metaHolder metaClientHolder

	dialPeer  func(loc Location) (PeerClient, error)
	poolPeer  func(loc Location) (PeerClient, error)
	newReader func(meta *MetaServerClient) StripeReader
}

// Deps bundles the engine's external collaborators (spec §1).
type Deps struct {
	Store  ChunkStore
	BufMgr BufferManager
	ReqSrc RequestSource
	Logger Logger

	// DialPeer establishes a fresh connection to loc. Required.
	DialPeer func(loc Location) (PeerClient, error)
	// PoolPeer draws a pooled connection to loc; optional. When nil or
	// when the config disables pooling, DialPeer is always used.
	PoolPeer func(loc Location) (PeerClient, error)
	// NewStripeReader constructs a fresh Stripe Reader for one recovery
	// replicator, handed the Shared Metaserver Client it should use for
	// stripe-location lookups. Required to support RS recovery requests.
	NewStripeReader func(meta *MetaServerClient) StripeReader
}

// New builds an Engine with the given configuration and collaborators.
func New(cfg Config, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	counters := &Counters{}
	e := &Engine{
		counters:  counters,
		registry:  NewRegistry(counters),
		config:    NewConfigStore(cfg),
		store:     deps.Store,
		bufMgr:    deps.BufMgr,
		reqSrc:    deps.ReqSrc,
		logger:    logger,
		dialPeer:  deps.DialPeer,
		poolPeer:  deps.PoolPeer,
		newReader: deps.NewStripeReader,
	}
	return e
}

// Config returns a snapshot of the engine's current configuration.
func (e *Engine) Config() Config { return e.config.Get() }

// SetParameters applies new configuration atomically (spec §6
// "Configuration surface"); returns whether anything changed.
func (e *Engine) SetParameters(cfg Config) bool { return e.config.SetParameters(cfg) }

// Counters returns a snapshot of the observable counters (spec §6).
func (e *Engine) Counters() CountersSnapshot { return e.counters.Snapshot() }

// GetNumReplications returns the number of currently in-flight
// replicators (spec §8).
func (e *Engine) GetNumReplications() int { return e.registry.GetNumReplications() }

// CancelAll cancels every in-flight replicator and stops the shared
// meta-server client (spec §4.4, §4.3).
func (e *Engine) CancelAll() {
	e.registry.CancelAll()
	e.metaHolder.stopShared()
}

func (e *Engine) bufferCeiling() int64 {
	type ceilingReporter interface{ Ceiling() int64 }
	if cr, ok := e.bufMgr.(ceilingReporter); ok {
		return cr.Ceiling()
	}
	return e.config.Get().MaxChunkReadSize
}
