// Package stripereader provides a reference implementation of the
// engine.StripeReader contract, reconstructing a chunk's bytes from
// surviving Reed-Solomon data/parity stripes via klauspost/reedsolomon --
// grounded on the stripe-reconstruction pattern in NVIDIA-aistore's
// ec/getjogger.go (reedsolomon.Reconstruct over per-slice readers), but
// simplified to the in-memory, fixed-shard-set API since this package's
// job is to give the RS decoder dependency a concrete home, not to
// reimplement on-the-wire stripe fetch.
package stripereader

import (
	"errors"
	"sync"

	"github.com/klauspost/reedsolomon"

	"github.com/chunkgrid/storagenode/engine"
)

// ShardFetcher retrieves one stripe's raw bytes for the chunk opened via
// Open. A nil data slice with ok=false means the shard is missing or
// corrupt; chunkID/chunkVersion identify it for invalid-stripe reporting.
type ShardFetcher interface {
	FetchShard(stripeIndex int, path string, chunkOffset int64, shardSize int64) (data []byte, chunkID, chunkVersion int64, ok bool)
}

// Reader is the reference StripeReader. One Reader is used per recovery
// replicator (it is not safe to Open twice).
type Reader struct {
	mu sync.Mutex

	fetcher ShardFetcher
	meta    *engine.MetaServerClient

	fileID             int64
	path               string
	fileSize           int64
	stripeSize         int64
	numStripes         int
	numRecoveryStripes int
	chunkOffset        int64

	reconstructed []byte // the full logical chunk, assembled on the first Read
	completion    engine.StripeReadCompletion
	active        bool
	closed        bool
}

// New builds a Reader that pulls shards via fetcher and resolves stripe
// locations through the given shared Shared Metaserver Client.
func New(fetcher ShardFetcher, meta *engine.MetaServerClient) *Reader {
	return &Reader{fetcher: fetcher, meta: meta}
}

// Open implements engine.StripeReader. It only records the stripe
// parameters; the first Read fetches and, if necessary, reconstructs the
// full logical chunk, and later Read calls are simple slices of it --
// acceptable since a chunk is bounded by CHUNKSIZE.
func (r *Reader) Open(fileID int64, path string, fileSize int64, striperType engine.StriperType,
	stripeSize int64, numStripes, numRecoveryStripes int, _, _ bool, chunkOffset int64) error {
	if striperType != engine.StriperRS {
		return errors.New("stripereader: only RS striping is supported")
	}
	r.mu.Lock()
	r.fileID = fileID
	r.path = path
	r.fileSize = fileSize
	r.stripeSize = stripeSize
	r.numStripes = numStripes
	r.numRecoveryStripes = numRecoveryStripes
	r.chunkOffset = chunkOffset
	r.active = true
	r.mu.Unlock()

	return nil
}

// Register installs the completion callback invoked by Read.
func (r *Reader) Register(done engine.StripeReadCompletion) {
	r.mu.Lock()
	r.completion = done
	r.mu.Unlock()
}

func (r *Reader) Unregister() {
	r.mu.Lock()
	r.completion = nil
	r.mu.Unlock()
}

// Read serves length bytes at offset from the (lazily reconstructed)
// logical chunk, asynchronously via the registered completion.
func (r *Reader) Read(buf []byte, length int, offset int64, requestID int64) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("stripereader: read after close")
	}
	if r.reconstructed == nil {
		data, invalid, err := r.reconstruct()
		if err != nil && invalid == nil {
			r.mu.Unlock()
			return err
		}
		if invalid != nil {
			completion := r.completion
			r.mu.Unlock()
			if completion != nil {
				go completion(-1, offset, 0, invalid, requestID)
			}
			return nil
		}
		r.reconstructed = data
	}
	chunkBuf := r.reconstructed
	completion := r.completion
	r.mu.Unlock()

	localOffset := offset - r.chunkOffset
	end := localOffset + int64(length)
	if end > int64(len(chunkBuf)) {
		end = int64(len(chunkBuf))
	}
	var out []byte
	if localOffset < int64(len(chunkBuf)) && localOffset < end {
		out = chunkBuf[localOffset:end]
	}
	n := copy(buf, out)

	if completion != nil {
		go completion(0, offset, int64(n), buf[:n], requestID)
	}
	return nil
}

// reconstruct fetches every data+parity shard for the chunk and runs
// Reed-Solomon reconstruction over whatever subset is missing. When more
// shards are bad than numRecoveryStripes, or reconstruction fails, data is
// nil and invalid lists every bad stripe in the wire encoding (err is nil).
func (r *Reader) reconstruct() (data []byte, invalid []byte, err error) {
	total := r.numStripes + r.numRecoveryStripes
	shardSize := engine.CHUNKSIZE / int64(r.numStripes)
	if engine.CHUNKSIZE%int64(r.numStripes) != 0 {
		shardSize++
	}

	shards := make([][]byte, total)
	var bad []engine.InvalidStripe
	for i := 0; i < total; i++ {
		shardData, chunkID, chunkVersion, ok := r.fetcher.FetchShard(i, r.path, r.chunkOffset, shardSize)
		if !ok {
			bad = append(bad, engine.InvalidStripe{StripeIndex: int64(i), ChunkID: chunkID, ChunkVersion: chunkVersion})
			continue
		}
		shards[i] = shardData
	}

	if len(bad) > 0 {
		if len(bad) > r.numRecoveryStripes {
			return nil, engine.EncodeInvalidStripes(bad), nil
		}
		enc, encErr := reedsolomon.New(r.numStripes, r.numRecoveryStripes)
		if encErr != nil {
			return nil, nil, encErr
		}
		if recErr := enc.Reconstruct(shards); recErr != nil {
			return nil, engine.EncodeInvalidStripes(bad), nil
		}
	}

	out := make([]byte, 0, int64(r.numStripes)*shardSize)
	for i := 0; i < r.numStripes; i++ {
		out = append(out, shards[i]...)
	}
	return out, nil, nil
}

func (r *Reader) Close() {
	r.mu.Lock()
	r.closed = true
	r.active = false
	r.mu.Unlock()
}

func (r *Reader) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Reader) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.active = false
	completion := r.completion
	r.completion = nil
	r.mu.Unlock()
	_ = completion
}
