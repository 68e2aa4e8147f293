package chunkserver

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chunkgrid/storagenode/common"
)

// This function will be started in a goroutine an continuously handles
// primary commit requests. It buffers commit requests and then after a certain period of time
// goes through the commit requests and separates them according to the chunkHandle.
// Now the requests are anyways in a certain order, we can extract the MutationId from these requests and
// send inter-chunkServer commit requests to the secondary chunkServers specifying this mutation order.
func (chunkServer *ChunkServer) startCommitRequestHandler() {

	log.Println("started commit request handler")

	const batchDuration = 2 * time.Second // specifies a batch duration
	const maxBatchSize = 100

	for {
		// Use a slice to accumulate the commit requests
		pendingCommits := make([]CommitRequest, 0, maxBatchSize)

		// Set up a timer for batching
		timer := time.NewTimer(batchDuration)

		// Accumulate commit requests until either:
		// 1. The batch duration expires
		// 2. We hit the max batch size
		batchComplete := false

		for !batchComplete && len(pendingCommits) < maxBatchSize {
			select {
			case req, ok := <-chunkServer.commitRequestChannel:
				if !ok {
					// Channel was closed, exit the goroutine
					return
				}
				pendingCommits = append(pendingCommits, req)

			case <-timer.C:
				// Timer expired, process the batch
				batchComplete = true
			}
		}

		// If timer hasn't fired yet, stop it to avoid leaks
		if !batchComplete {
			timer.Stop()
		}

		// Skip processing if no requests were accumulated
		if len(pendingCommits) == 0 {
			continue
		}

		// Process the batch of commit requests
		chunkServer.processCommitBatch(pendingCommits)
	}
}

func (chunkServer *ChunkServer) translateChunkHandleToFileName(chunkHandle int64) string {
	fileName := strconv.FormatInt(chunkHandle, 10)
	return filepath.Join(chunkServer.chunkDirectory, fileName) + ".chunk"
}

func (chunkServer *ChunkServer) deleteChunk(chunkHandle int64) {
	chunkServer.mu.Lock()
	defer chunkServer.mu.Unlock()
	fileName := chunkServer.translateChunkHandleToFileName(chunkHandle)
	err := os.Remove(fileName)
	if err != nil {
		log.Println(err)
	}

	newChunkHandles := make([]int64, 0)
	for _, val := range chunkServer.chunkHandles {
		if val != chunkHandle {
			newChunkHandles = append(newChunkHandles, val)
		}
	}
	chunkServer.chunkHandles = newChunkHandles
}

// loadChunks loads the set of chunk handles already present on disk from
// chunkServer.chunkDirectory; it returns an error if the directory cannot be
// read (for example, when it does not exist).
func (chunkServer *ChunkServer) loadChunks() error {
	var chunkHandles []int64

	entries, err := os.ReadDir(chunkServer.chunkDirectory)
	if err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return err
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		if !strings.HasSuffix(filename, ".chunk") {
			continue
		}

		numberPart := strings.TrimSuffix(filename, ".chunk")
		chunkNumber, err := strconv.ParseInt(numberPart, 10, 64)
		if err != nil {
			log.Printf("could not convert %s to a chunk handle: %v", filename, err)
			continue
		}

		chunkHandles = append(chunkHandles, chunkNumber)
	}

	chunkServer.chunkHandles = chunkHandles
	return nil
}

// checkIfPrimary reports whether this server currently holds a live
// primary-write lease on chunkHandle (spec.md's external Chunk Store
// contract, expressed in the teacher's own lease-freshness check).
func (chunkServer *ChunkServer) checkIfPrimary(chunkHandle int64) bool {
	chunkServer.mu.Lock()
	defer chunkServer.mu.Unlock()
	lease, isPrimary := chunkServer.leaseGrants[chunkHandle]
	if !isPrimary {
		return false
	}
	if time.Since(lease.grantTime) >= 60*time.Second {
		return false
	}
	return true
}

// processCommitBatch handles a batch of commit requests
// It basically separates out the commit requests based on the chunkHandle.
// Then it launches goroutines that handle the commits for each chunk Separately
func (chunkServer *ChunkServer) processCommitBatch(requests []CommitRequest) {

	log.Printf("Processing batch of %d commit requests", len(requests))
	chunkBatches := make(map[int64][]CommitRequest)
	for _, req := range requests {
		chunkBatches[req.commitRequest.ChunkHandle] = append(chunkBatches[req.commitRequest.ChunkHandle], req)
	}

	for key, value := range chunkBatches {
		go chunkServer.handleChunkPrimaryCommit(key, value)
	}
}

// writeChunkToCache inserts the data into the chunkServer's LRU cache, keyed
// by mutationId; the chunk handle is re-associated in the subsequent commit
// request exchanged between chunk servers, so it doesn't need to be part of
// this mapping too.
func (chunkServer *ChunkServer) writeChunkToCache(mutationId int64, data []byte) error {
	chunkServer.lruCache.Put(mutationId, data)
	return nil
}

// mutateChunk extracts the data staged in the LRU cache under mutationId and
// writes it at chunkOffset, enforcing the fixed per-chunk size ceiling.
func (chunkServer *ChunkServer) mutateChunk(file *os.File, mutationId int64, chunkOffset int64) (int64, error) {

	data, present := chunkServer.lruCache.Get(mutationId)
	if !present {
		return 0, errors.New("data not present in lru cache")
	}

	if chunkOffset+int64(len(data)) > common.ChunkSize {
		return 0, common.ErrChunkFull
	}

	amountWritten, err := file.WriteAt(data, chunkOffset)
	if err != nil {
		return 0, err
	}
	if err := file.Sync(); err != nil {
		return 0, err
	}
	return int64(amountWritten), nil
}
