package chunkserver

import (
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/chunkgrid/storagenode/common"
	"github.com/chunkgrid/storagenode/engine"
	"github.com/chunkgrid/storagenode/engine/stripereader"
	"github.com/chunkgrid/storagenode/helper"
)

// replicationEngine is the surface ChunkServer needs from an
// engine.Engine, kept narrow so this file (not chunkServer.go) owns the
// import of the engine package.
type replicationEngine interface {
	Dispatch(op *engine.ReplicateChunkOp)
	CancelAll()
}

// AttachEngine wires a replication/recovery engine into this chunk
// server, built from the server's own dial/peer plumbing. Called once,
// after NewChunkServer, before Start.
func (chunkServer *ChunkServer) AttachEngine(cfg engine.Config, logger engine.Logger) {
	reqSrc := &chunkServerRequestSource{pending: make(map[int64]net.Conn)}
	deps := engine.Deps{
		Store:  &engineChunkStore{server: chunkServer},
		BufMgr: engine.NewFIFOBufferManager(cfg.MaxChunkReadSize),
		ReqSrc: reqSrc,
		Logger: logger,
		DialPeer: func(loc engine.Location) (engine.PeerClient, error) {
			return dialPeerChunkServer(loc)
		},
		NewStripeReader: func(meta *engine.MetaServerClient) engine.StripeReader {
			return stripereader.New(&peerShardFetcher{meta: meta}, meta)
		},
	}
	chunkServer.reqSrc = reqSrc
	chunkServer.engine = engine.New(cfg, deps)
}

// handleReplicateChunkRequest decodes a master-issued replication/recovery
// instruction and dispatches it to the attached engine, responding on the
// same connection once the engine finishes.
func (chunkServer *ChunkServer) handleReplicateChunkRequest(conn net.Conn, requestBodyBytes []byte) error {
	if chunkServer.engine == nil {
		return common.ErrEngineNotAttached
	}

	req, err := helper.DecodeMessage[common.ReplicateChunkRequest](requestBodyBytes)
	if err != nil {
		return err
	}

	op := &engine.ReplicateChunkOp{
		FileID:       req.FileID,
		ChunkID:      req.ChunkHandle,
		ChunkVersion: req.Version,
		Path:         req.Path,
		FileSize:     req.FileSize,
		ChunkOffset:  req.ChunkOffset,

		StriperType:        engine.StriperType(req.StriperType),
		StripeSize:         req.StripeSize,
		NumStripes:         req.NumStripes,
		NumRecoveryStripes: req.NumRecoveryStripes,
	}
	// An empty PeerHost with a positive PeerPort is a recovery request
	// whose port names the meta server; Dispatch tells the two apart.
	op.Location = engine.Location{Host: req.PeerHost, Port: req.PeerPort}

	// The InFlight Registry guarantees at most one replicator per chunk
	// id, so registering the response connection under ChunkID is enough
	// to route the eventual Respond call back to the right peer.
	chunkServer.reqSrc.register(op.ChunkID, conn)
	chunkServer.engine.Dispatch(op)
	return nil
}

// engineChunkStore adapts ChunkServer's on-disk chunk files and in-memory
// version map to the engine.ChunkStore contract.
type engineChunkStore struct {
	server *ChunkServer
}

func (s *engineChunkStore) AllocChunk(fileID, chunkID, version int64, replicationInProgress bool) error {
	fileName := s.server.translateChunkHandleToFileName(chunkID)
	file, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	s.server.mu.Lock()
	s.server.chunkVersions[chunkID] = version
	s.server.chunkHandles = append(s.server.chunkHandles, chunkID)
	s.server.mu.Unlock()
	return nil
}

func (s *engineChunkStore) StaleChunk(chunkID int64, deleteOK bool) {
	if !deleteOK {
		return
	}
	s.server.deleteChunk(chunkID)
	s.server.mu.Lock()
	delete(s.server.chunkVersions, chunkID)
	s.server.mu.Unlock()
}

func (s *engineChunkStore) WriteChunk(op *engine.WriteOp, done func(numBytesIO int64, err error)) {
	fileName := s.server.translateChunkHandleToFileName(op.ChunkID)
	file, err := helper.OpenExistingFile(fileName)
	if err != nil {
		done(0, err)
		return
	}
	defer file.Close()

	n, err := file.WriteAt(op.Data, op.Offset)
	if err != nil {
		done(int64(n), err)
		return
	}
	if err := file.Sync(); err != nil {
		done(int64(n), err)
		return
	}
	done(int64(n), nil)
}

func (s *engineChunkStore) ChangeChunkVers(chunkID, version int64, stable bool, done func(err error)) {
	s.server.mu.Lock()
	s.server.chunkVersions[chunkID] = version
	s.server.mu.Unlock()
	done(nil)
}

func (s *engineChunkStore) ReplicationDone(chunkID int64, status int) {
	if status != 0 {
		log.Printf("replication of chunk %d finished with status %d", chunkID, status)
	}
}

func (s *engineChunkStore) GetChunkInfo(chunkID int64) (*engine.ChunkInfo, bool) {
	fileName := s.server.translateChunkHandleToFileName(chunkID)
	info, err := os.Stat(fileName)
	if err != nil {
		return nil, false
	}
	s.server.mu.Lock()
	version := s.server.chunkVersions[chunkID]
	s.server.mu.Unlock()
	return &engine.ChunkInfo{ChunkID: chunkID, ChunkVersion: version, ChunkSize: info.Size()}, true
}

// chunkServerRequestSource writes a ReplicateChunkResponse back over
// whichever connection carried the originating ReplicateChunkRequest for
// that chunk, looked up by chunk id (at most one replicator per chunk is
// in flight at a time, per the engine's InFlight Registry invariant).
type chunkServerRequestSource struct {
	mu      sync.Mutex
	pending map[int64]net.Conn
}

func (s *chunkServerRequestSource) register(chunkID int64, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[chunkID] = conn
}

func (s *chunkServerRequestSource) Respond(op *engine.ReplicateChunkOp) {
	s.mu.Lock()
	conn, ok := s.pending[op.ChunkID]
	delete(s.pending, op.ChunkID)
	s.mu.Unlock()
	if !ok {
		log.Printf("no pending connection for replicated chunk %d", op.ChunkID)
		return
	}

	resp := common.ReplicateChunkResponse{
		ChunkHandle:      op.ChunkID,
		Status:           op.Status,
		Version:          op.ChunkVersion,
		InvalidStripeIdx: op.InvalidStripeIdx,
	}
	encoded, err := helper.EncodeMessage(common.ReplicateChunkResponseType, resp)
	if err != nil {
		log.Println(err)
		return
	}
	if _, err := conn.Write(encoded); err != nil {
		log.Println(err)
	}
}

// enginePeerClient dials another chunk server to stream chunk bytes for
// direct replication, reusing the teacher's own retry-with-backoff dial
// style (writeCommitRequestToSingleServer).
type enginePeerClient struct {
	loc  engine.Location
	conn net.Conn
	mu   sync.Mutex
}

func dialPeerChunkServer(loc engine.Location) (engine.PeerClient, error) {
	conn, err := helper.DialWithRetry(loc.String(), 5)
	if err != nil {
		return nil, err
	}
	return &enginePeerClient{loc: loc, conn: conn}, nil
}

func (p *enginePeerClient) GetLocation() string { return p.loc.String() }

func (p *enginePeerClient) GetChunkMetadata(chunkID int64, done func(chunkSize, chunkVersion int64, status int)) {
	req := common.PeerChunkMetadataRequest{ChunkHandle: chunkID}
	encoded, err := helper.EncodeMessage(common.PeerChunkMetadataRequestType, req)
	if err != nil {
		done(0, 0, -1)
		return
	}
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := helper.AddTimeoutForTheConnection(p.conn, 10*time.Second); err != nil {
			done(0, 0, -1)
			return
		}
		if _, err := p.conn.Write(encoded); err != nil {
			done(0, 0, -1)
			return
		}
		_, body, err := helper.ReadMessage(p.conn)
		if err != nil {
			done(0, 0, -1)
			return
		}
		resp, err := helper.DecodeMessage[common.PeerChunkMetadataResponse](body)
		if err != nil {
			done(0, 0, -1)
			return
		}
		done(resp.ChunkSize, resp.ChunkVersion, resp.Status)
	}()
}

func (p *enginePeerClient) Read(chunkID, chunkVersion, offset, numBytes int64, done func(data []byte, status int)) {
	req := common.PeerChunkReadRequest{
		ChunkHandle:  chunkID,
		ChunkVersion: chunkVersion,
		Offset:       offset,
		Length:       numBytes,
	}
	encoded, err := helper.EncodeMessage(common.PeerChunkReadRequestType, req)
	if err != nil {
		done(nil, -1)
		return
	}
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := helper.AddTimeoutForTheConnection(p.conn, 30*time.Second); err != nil {
			done(nil, -1)
			return
		}
		if _, err := p.conn.Write(encoded); err != nil {
			done(nil, -1)
			return
		}
		_, body, err := helper.ReadMessage(p.conn)
		if err != nil {
			done(nil, -1)
			return
		}
		resp, err := helper.DecodeMessage[common.PeerChunkReadResponse](body)
		if err != nil {
			done(nil, -1)
			return
		}
		done(resp.Data, resp.Status)
	}()
}

// handlePeerChunkMetadataRequest serves another chunk server's stripe/peer
// metadata lookup for a chunk this server holds a local copy of.
func (chunkServer *ChunkServer) handlePeerChunkMetadataRequest(conn net.Conn, requestBodyBytes []byte) error {
	req, err := helper.DecodeMessage[common.PeerChunkMetadataRequest](requestBodyBytes)
	if err != nil {
		return err
	}

	fileName := chunkServer.translateChunkHandleToFileName(req.ChunkHandle)
	info, statErr := os.Stat(fileName)
	resp := common.PeerChunkMetadataResponse{Status: 0}
	if statErr != nil {
		resp.Status = -1
	} else {
		chunkServer.mu.Lock()
		resp.ChunkVersion = chunkServer.chunkVersions[req.ChunkHandle]
		chunkServer.mu.Unlock()
		resp.ChunkSize = info.Size()
	}

	encoded, err := helper.EncodeMessage(common.PeerChunkMetadataResponseType, resp)
	if err != nil {
		return err
	}
	_, err = conn.Write(encoded)
	return err
}

// handlePeerChunkReadRequest serves a byte-range read of a locally held
// chunk, used both by the Direct Replicator's peer stream and by Stripe
// Readers fetching individual RS shards from the servers that hold them.
func (chunkServer *ChunkServer) handlePeerChunkReadRequest(conn net.Conn, requestBodyBytes []byte) error {
	req, err := helper.DecodeMessage[common.PeerChunkReadRequest](requestBodyBytes)
	if err != nil {
		return err
	}

	fileName := chunkServer.translateChunkHandleToFileName(req.ChunkHandle)
	resp := common.PeerChunkReadResponse{Status: 0}

	file, openErr := helper.OpenExistingFile(fileName)
	if openErr != nil {
		resp.Status = -1
	} else {
		defer file.Close()
		buf := make([]byte, req.Length)
		n, readErr := file.ReadAt(buf, req.Offset)
		if readErr != nil && n == 0 {
			resp.Status = -1
		} else {
			resp.Data = buf[:n]
		}
	}

	encoded, err := helper.EncodeMessage(common.PeerChunkReadResponseType, resp)
	if err != nil {
		return err
	}
	_, err = conn.Write(encoded)
	return err
}

// peerShardFetcher adapts a Shared Metaserver Client's stripe-location
// lookups to the Stripe Reader's ShardFetcher contract: each stripe of a
// stripe group is held by a different peer chunk server, resolved by
// convention as the meta client's configured host at (base port +
// stripeIndex), since the master's own chunk-location protocol is out of
// this module's scope.
type peerShardFetcher struct {
	meta *engine.MetaServerClient
}

func (f *peerShardFetcher) FetchShard(stripeIndex int, path string, chunkOffset int64, shardSize int64) ([]byte, int64, int64, bool) {
	host, basePort := f.meta.Location()
	loc := engine.Location{Host: host, Port: basePort + stripeIndex}

	client, err := dialPeerChunkServer(loc)
	if err != nil {
		return nil, 0, 0, false
	}
	peer, ok := client.(*enginePeerClient)
	if !ok {
		return nil, 0, 0, false
	}
	defer peer.conn.Close()

	metaDone := make(chan struct{})
	var chunkSize, chunkVersion int64
	var metaStatus int
	peer.GetChunkMetadata(0, func(size, version int64, status int) {
		chunkSize, chunkVersion, metaStatus = size, version, status
		close(metaDone)
	})
	<-metaDone
	if metaStatus != 0 {
		return nil, 0, 0, false
	}

	readDone := make(chan struct{})
	var data []byte
	var readStatus int
	peer.Read(0, chunkVersion, chunkOffset, shardSize, func(d []byte, status int) {
		data, readStatus = d, status
		close(readDone)
	})
	<-readDone
	if readStatus != 0 || int64(len(data)) != shardSize {
		return nil, 0, chunkVersion, false
	}
	return data, chunkSize, chunkVersion, true
}
