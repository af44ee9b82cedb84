// Package milterutil collects small pieces shared across the milter wire
// and transport layers that don't belong to any one protocol package.
package milterutil

import (
	"bufio"
	"io"
	"sync"
)

// ChunkScanner re-chunks an [io.Reader] into fixed-size pieces no larger
// than maxChunk, the shape a ReplaceBody response sequence needs: every
// chunk must fit in a single milter frame, so a modified body of arbitrary
// length gets re-emitted as a run of bounded writes instead of one
// oversized one.
type ChunkScanner struct {
	maxChunk uint32
	backing  []byte
	scanner  *bufio.Scanner
	pool     *sync.Pool
}

func (c *ChunkScanner) reset(pool *sync.Pool, r io.Reader) {
	limit := int(c.maxChunk)
	c.pool = pool
	c.scanner = bufio.NewScanner(r)
	c.scanner.Buffer(c.backing, limit)
	c.scanner.Split(func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if len(data) >= limit {
			return limit, data[0:limit], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	})
}

// Scan advances to the next chunk, reporting whether one is available.
func (c *ChunkScanner) Scan() bool {
	return c.scanner.Scan()
}

// Chunk returns the chunk most recently produced by Scan.
func (c *ChunkScanner) Chunk() []byte {
	return c.scanner.Bytes()
}

// Err returns the first non-EOF error Scan encountered.
func (c *ChunkScanner) Err() error {
	return c.scanner.Err()
}

// Release returns the ChunkScanner to its size-keyed pool. It does not
// close the underlying [io.Reader]; the caller owns that.
func (c *ChunkScanner) Release() {
	c.pool.Put(c)
}

var chunkScannerPools sync.Map // uint32 -> *sync.Pool

func newChunkScannerPool(maxChunk uint32) *sync.Pool {
	return &sync.Pool{New: func() interface{} {
		return &ChunkScanner{maxChunk: maxChunk, backing: make([]byte, maxChunk)}
	}}
}

// AcquireChunkScanner returns a ChunkScanner, pulled from a pool keyed by
// maxChunk, configured to read from r in maxChunk-sized pieces.
//
// The caller is responsible for closing r and must call Release once done
// with the returned ChunkScanner so it can be reused by the next caller
// requesting the same maxChunk.
func AcquireChunkScanner(maxChunk uint32, r io.Reader) *ChunkScanner {
	poolVal, _ := chunkScannerPools.LoadOrStore(maxChunk, newChunkScannerPool(maxChunk))
	pool := poolVal.(*sync.Pool)
	c := pool.Get().(*ChunkScanner)
	c.reset(pool, r)
	return c
}
