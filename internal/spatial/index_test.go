package spatial

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

func TestBuildAndLookup(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	entries := make([]mc.BlockEntry, 0, 5000)
	seen := make(map[string]bool)
	for len(entries) < 5000 {
		e := mc.BlockEntry{
			X:       int32(rng.Intn(1024) - 512),
			Y:       int32(rng.Intn(384) - 64),
			Z:       int32(rng.Intn(1024) - 512),
			BlockID: uint32(rng.Intn(200) + 1),
		}
		key := mc.Key(e.X, e.Y, e.Z)
		if seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, e)
	}

	idx, stats := BuildFromEntries(entries)
	if stats.ValidBlocks != len(entries) {
		t.Fatalf("ValidBlocks = %d, want %d", stats.ValidBlocks, len(entries))
	}
	for _, e := range entries {
		id, ok := idx.Lookup(e.X, e.Y, e.Z)
		if !ok {
			t.Fatalf("Lookup(%d,%d,%d) missing", e.X, e.Y, e.Z)
		}
		if id != e.BlockID {
			t.Fatalf("Lookup(%d,%d,%d) = %d, want %d", e.X, e.Y, e.Z, id, e.BlockID)
		}
	}
	if _, ok := idx.Lookup(9999, 9999, 9999); ok {
		t.Fatal("Lookup found a block that was never inserted")
	}
}

func TestBuildCountsSumToInput(t *testing.T) {
	blocks := []mc.KeyedBlock{
		{Key: "0,0,0", BlockID: 1},
		{Key: "1,0,0", BlockID: 0}, // air
		{Key: "garbage", BlockID: 2},
		{Key: "2,0,0", BlockID: 3},
		{Key: "3,0", BlockID: 4}, // short key
		{Key: "4,0,0", BlockID: 0},
	}
	idx, stats := Build(blocks)

	if stats.ValidBlocks != 2 || stats.AirBlocksSkipped != 2 || stats.SkippedInvalidKeys != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.ValidBlocks+stats.AirBlocksSkipped+stats.SkippedInvalidKeys != len(blocks) {
		t.Fatalf("counts do not sum to input length: %+v", stats)
	}
	if idx.Len() != stats.ValidBlocks {
		t.Fatalf("Len() = %d, want %d", idx.Len(), stats.ValidBlocks)
	}
	if len(idx.CollisionTable) != idx.Len() {
		t.Fatalf("collision table not trimmed: %d vs %d", len(idx.CollisionTable), idx.Len())
	}
}

func TestEveryEntryInExactlyOneChainAndBucket(t *testing.T) {
	entries := []mc.BlockEntry{
		{X: 0, Y: 0, Z: 0, BlockID: 1},
		{X: 15, Y: 15, Z: 15, BlockID: 2},
		{X: 16, Y: 0, Z: 0, BlockID: 3},
		{X: -1, Y: -1, Z: -1, BlockID: 4},
		{X: -16, Y: 0, Z: 0, BlockID: 5},
		{X: 100, Y: 50, Z: -100, BlockID: 6},
	}
	idx, _ := BuildFromEntries(entries)

	chained := make(map[uint32]int)
	for _, head := range idx.HashTable {
		for cur := head; cur != HashEmpty; cur = idx.CollisionTable[cur] {
			chained[cur]++
		}
	}
	bucketed := make(map[uint32]int)
	for _, indices := range idx.ChunkBuckets {
		for _, i := range indices {
			bucketed[i]++
		}
	}
	for i := uint32(0); int(i) < idx.Len(); i++ {
		if chained[i] != 1 {
			t.Errorf("entry %d appears in %d hash chains", i, chained[i])
		}
		if bucketed[i] != 1 {
			t.Errorf("entry %d appears in %d chunk buckets", i, bucketed[i])
		}
	}
}

func TestChunkBucketsUseFloorDivision(t *testing.T) {
	entries := []mc.BlockEntry{
		{X: -1, Y: 0, Z: 0, BlockID: 1},
		{X: 0, Y: 0, Z: 0, BlockID: 2},
	}
	idx, stats := BuildFromEntries(entries)
	if stats.ChunksInIndex != 2 {
		t.Fatalf("ChunksInIndex = %d, want 2 (x=-1 is chunk -1)", stats.ChunksInIndex)
	}
	if got := idx.ChunkEntries(mc.ChunkPos{X: -1, Y: 0, Z: 0}); len(got) != 1 {
		t.Fatalf("chunk (-1,0,0) entries = %v", got)
	}
}

// Duplicate positions are both stored; the chain is walked in insertion
// order, so a lookup finds the first-inserted entry.
func TestDuplicatePositionFirstInsertedWins(t *testing.T) {
	blocks := []mc.KeyedBlock{
		{Key: "0,0,0", BlockID: 1},
		{Key: "0,0,0", BlockID: 2},
	}
	idx, stats := Build(blocks)
	if stats.ValidBlocks != 2 {
		t.Fatalf("ValidBlocks = %d, want 2 (no dedup pass)", stats.ValidBlocks)
	}
	id, ok := idx.Lookup(0, 0, 0)
	if !ok || id != 1 {
		t.Fatalf("Lookup = %d,%v, want first-inserted id 1", id, ok)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	blocks := make([]mc.KeyedBlock, 2000)
	for i := range blocks {
		blocks[i] = mc.KeyedBlock{
			Key:     mc.Key(int32(rng.Intn(200)), int32(rng.Intn(200)), int32(rng.Intn(200))),
			BlockID: uint32(rng.Intn(50) + 1),
		}
	}
	a, _ := Build(blocks)
	b, _ := Build(blocks)

	if !reflect.DeepEqual(a.BlockIDs, b.BlockIDs) {
		t.Fatal("BlockIDs differ between identical builds")
	}
	if !reflect.DeepEqual(a.Coordinates, b.Coordinates) {
		t.Fatal("Coordinates differ between identical builds")
	}
	if !reflect.DeepEqual(a.HashTable, b.HashTable) {
		t.Fatal("HashTable differs between identical builds")
	}
}

func TestHashCapacityLoadFactor(t *testing.T) {
	entries := make([]mc.BlockEntry, 100)
	for i := range entries {
		entries[i] = mc.BlockEntry{X: int32(i), Y: 0, Z: 0, BlockID: 1}
	}
	idx, _ := BuildFromEntries(entries)
	if len(idx.HashTable) != 150 {
		t.Fatalf("hash capacity = %d, want 150", len(idx.HashTable))
	}
}

func TestBuildEmptyInput(t *testing.T) {
	idx, stats := Build(nil)
	if stats.ValidBlocks != 0 || idx.Len() != 0 {
		t.Fatalf("empty build: %+v", stats)
	}
	if _, ok := idx.Lookup(0, 0, 0); ok {
		t.Fatal("lookup on empty index returned a block")
	}
}
