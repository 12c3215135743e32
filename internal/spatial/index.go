// Package spatial builds a flat-array spatial hash index over a sparse
// voxel set. The index favors memory density over update flexibility:
// entries live in parallel typed arrays, hash buckets hold array indices
// instead of pointers, and collisions chain through a per-entry next
// array. There is no removal; a changed block set means a rebuild.
package spatial

import (
	"time"

	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// HashEmpty is the sentinel stored in hash and collision slots that hold
// no entry. It is compared explicitly; the arrays carry no option type.
const HashEmpty uint32 = 0xFFFFFFFF

// Spatial hash primes. Chosen for low collision rates on integer
// lattices.
const (
	hashPrimeX = 73856093
	hashPrimeY = 19349663
	hashPrimeZ = 83492791
)

// DefaultChunkSize is the edge length of the cells in the secondary
// chunk-bucket index.
const DefaultChunkSize = mc.ChunkSize

// Index is the built artifact. BlockIDs and Coordinates are parallel:
// entry i has id BlockIDs[i] and position Coordinates[3i..3i+2].
type Index struct {
	BlockIDs    []uint32
	Coordinates []int32

	// HashTable[slot] is the array index of the first entry hashing to
	// slot, or HashEmpty. CollisionTable[i] is the next entry in i's
	// bucket chain, HashEmpty-terminated.
	HashTable      []uint32
	CollisionTable []uint32

	// ChunkBuckets groups entry indices by coarse spatial cell for range
	// queries that must not scan the whole table.
	ChunkBuckets map[mc.ChunkPos][]uint32

	chunkSize int32
}

// Stats describes one build.
type Stats struct {
	ProcessTime        time.Duration
	ValidBlocks        int
	AirBlocksSkipped   int
	SkippedInvalidKeys int
	ChunksInIndex      int
}

// Option adjusts index construction.
type Option func(*builder)

// WithChunkSize overrides the chunk-bucket cell size.
func WithChunkSize(size int32) Option {
	return func(b *builder) { b.chunkSize = size }
}

type builder struct {
	chunkSize int32
}

// Build constructs the index from keyed blocks in a single pass. Air
// entries and entries with malformed keys are dropped and counted, never
// reported as errors. Input order is significant: it fixes the array
// layout and therefore which of two duplicate positions a lookup finds
// first.
func Build(blocks []mc.KeyedBlock, options ...Option) (*Index, Stats) {
	start := time.Now()

	b := builder{chunkSize: DefaultChunkSize}
	for _, opt := range options {
		opt(&b)
	}

	n := len(blocks)
	hashCapacity := n + (n+1)/2 // ceil(n * 1.5)
	if hashCapacity == 0 {
		hashCapacity = 1
	}

	idx := &Index{
		BlockIDs:       make([]uint32, n),
		Coordinates:    make([]int32, n*3),
		HashTable:      make([]uint32, hashCapacity),
		CollisionTable: make([]uint32, n),
		chunkSize:      b.chunkSize,
	}
	for i := range idx.HashTable {
		idx.HashTable[i] = HashEmpty
	}
	for i := range idx.CollisionTable {
		idx.CollisionTable[i] = HashEmpty
	}

	var stats Stats
	blockCount := uint32(0)

	for _, blk := range blocks {
		if blk.BlockID == mc.AirBlock {
			stats.AirBlocksSkipped++
			continue
		}
		x, y, z, err := mc.ParseKey(blk.Key)
		if err != nil {
			stats.SkippedInvalidKeys++
			continue
		}

		idx.BlockIDs[blockCount] = blk.BlockID
		idx.Coordinates[blockCount*3] = x
		idx.Coordinates[blockCount*3+1] = y
		idx.Coordinates[blockCount*3+2] = z

		slot := hashPosition(x, y, z) % uint32(hashCapacity)
		if idx.HashTable[slot] == HashEmpty {
			idx.HashTable[slot] = blockCount
		} else {
			// Append at the chain tail so earlier insertions stay in
			// front and win duplicate-position lookups.
			cur := idx.HashTable[slot]
			for idx.CollisionTable[cur] != HashEmpty {
				cur = idx.CollisionTable[cur]
			}
			idx.CollisionTable[cur] = blockCount
		}

		blockCount++
	}

	// Trim the over-allocation down to the live prefix.
	idx.BlockIDs = append([]uint32(nil), idx.BlockIDs[:blockCount]...)
	idx.Coordinates = append([]int32(nil), idx.Coordinates[:blockCount*3]...)
	idx.CollisionTable = idx.CollisionTable[:blockCount]

	idx.ChunkBuckets = make(map[mc.ChunkPos][]uint32)
	for i := uint32(0); i < blockCount; i++ {
		pos := mc.ChunkPos{
			X: mc.FloorDiv(idx.Coordinates[i*3], idx.chunkSize),
			Y: mc.FloorDiv(idx.Coordinates[i*3+1], idx.chunkSize),
			Z: mc.FloorDiv(idx.Coordinates[i*3+2], idx.chunkSize),
		}
		idx.ChunkBuckets[pos] = append(idx.ChunkBuckets[pos], i)
	}

	stats.ValidBlocks = int(blockCount)
	stats.ChunksInIndex = len(idx.ChunkBuckets)
	stats.ProcessTime = time.Since(start)
	return idx, stats
}

// BuildFromEntries is a convenience wrapper for callers that hold typed
// entries rather than transport keys.
func BuildFromEntries(entries []mc.BlockEntry, options ...Option) (*Index, Stats) {
	blocks := make([]mc.KeyedBlock, len(entries))
	for i, e := range entries {
		blocks[i] = e.Keyed()
	}
	return Build(blocks, options...)
}

// Len returns the number of live entries.
func (idx *Index) Len() int { return len(idx.BlockIDs) }

// Lookup returns the block id stored at (x, y, z). The second return is
// false when the position holds no entry. Expected O(1) for the build
// load factor.
func (idx *Index) Lookup(x, y, z int32) (uint32, bool) {
	if len(idx.HashTable) == 0 {
		return 0, false
	}
	cur := idx.HashTable[hashPosition(x, y, z)%uint32(len(idx.HashTable))]
	for cur != HashEmpty {
		if idx.Coordinates[cur*3] == x &&
			idx.Coordinates[cur*3+1] == y &&
			idx.Coordinates[cur*3+2] == z {
			return idx.BlockIDs[cur], true
		}
		cur = idx.CollisionTable[cur]
	}
	return 0, false
}

// Entry returns the i'th entry of the index.
func (idx *Index) Entry(i uint32) mc.BlockEntry {
	return mc.BlockEntry{
		X:       idx.Coordinates[i*3],
		Y:       idx.Coordinates[i*3+1],
		Z:       idx.Coordinates[i*3+2],
		BlockID: idx.BlockIDs[i],
	}
}

// ChunkEntries returns the indices of all entries inside the given chunk
// cell. The returned slice is owned by the index and must not be
// modified.
func (idx *Index) ChunkEntries(pos mc.ChunkPos) []uint32 {
	return idx.ChunkBuckets[pos]
}

func hashPosition(x, y, z int32) uint32 {
	return uint32(x)*hashPrimeX ^ uint32(y)*hashPrimeY ^ uint32(z)*hashPrimeZ
}
