package transport

import (
	"context"
	"runtime"

	"github.com/pkg/errors"

	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// DefaultMergeBatch is how many entries are merged between cooperative
// yields during reassembly.
const DefaultMergeBatch = 10_000

// ErrChunkOutOfOrder is returned when a piece arrives with an id other
// than the next expected one.
var ErrChunkOutOfOrder = errors.New("transport: chunk delivered out of order")

// ErrIncomplete is returned by Finish before all pieces have arrived.
var ErrIncomplete = errors.New("transport: reassembly incomplete")

// Accumulator is the single-writer staging buffer reassembly merges
// into. It preserves first-insertion order while applying last-write-wins
// on duplicate keys, so the entry array handed to the index builder is
// deterministic for a given delivery sequence.
type Accumulator struct {
	entries []mc.KeyedBlock
	byKey   map[string]int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{byKey: make(map[string]int)}
}

func (a *Accumulator) add(blk mc.KeyedBlock) {
	if i, ok := a.byKey[blk.Key]; ok {
		a.entries[i].BlockID = blk.BlockID
		return
	}
	a.byKey[blk.Key] = len(a.entries)
	a.entries = append(a.entries, blk)
}

// Len returns the number of distinct keys merged so far.
func (a *Accumulator) Len() int { return len(a.entries) }

// Blocks returns the merged entries in first-insertion order. The slice
// is owned by the accumulator until ownership transfers via
// Reassembler.Finish.
func (a *Accumulator) Blocks() []mc.KeyedBlock { return a.entries }

// CombineProgressFunc observes incremental merge progress:
// entries merged so far out of the entries delivered so far.
type CombineProgressFunc func(merged, delivered int)

// Reassembler consumes BlockChunks in ChunkID order and merges them into
// an Accumulator. Merging happens in small batches with a cooperative
// yield between batches so a huge transfer does not stall the host.
type Reassembler struct {
	acc       *Accumulator
	batchSize int
	progress  CombineProgressFunc

	total     uint32
	received  uint32
	delivered int
	done      bool
}

// NewReassembler returns a reassembler merging into a fresh accumulator.
// progress may be nil.
func NewReassembler(batchSize int, progress CombineProgressFunc) *Reassembler {
	if batchSize <= 0 {
		batchSize = DefaultMergeBatch
	}
	return &Reassembler{
		acc:       NewAccumulator(),
		batchSize: batchSize,
		progress:  progress,
	}
}

// Add merges one piece. Pieces must arrive with consecutive ids starting
// at 1; anything else is ErrChunkOutOfOrder. TotalChunks must not change
// between pieces of one transfer.
func (r *Reassembler) Add(ctx context.Context, chunk BlockChunk) error {
	if r.done {
		return errors.WithStack(ErrChunkOutOfOrder)
	}
	if chunk.ChunkID != r.received+1 {
		return errors.Wrapf(ErrChunkOutOfOrder, "got chunk %d, expected %d", chunk.ChunkID, r.received+1)
	}
	if r.received == 0 {
		if chunk.TotalChunks == 0 {
			return errors.New("transport: chunk announces zero total chunks")
		}
		r.total = chunk.TotalChunks
	} else if chunk.TotalChunks != r.total {
		return errors.Errorf("transport: total chunks changed from %d to %d", r.total, chunk.TotalChunks)
	}

	blocks := chunk.Blocks
	for len(blocks) > 0 {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		n := r.batchSize
		if n > len(blocks) {
			n = len(blocks)
		}
		for _, blk := range blocks[:n] {
			r.acc.add(blk)
		}
		blocks = blocks[n:]
		r.delivered += n
		if r.progress != nil {
			r.progress(r.acc.Len(), r.delivered)
		}
		// Yield between batches; one piece may hold far more entries
		// than a single scheduling quantum should.
		runtime.Gosched()
	}

	r.received++
	if r.received == r.total {
		r.done = true
	}
	return nil
}

// Done reports whether every announced piece has been merged.
func (r *Reassembler) Done() bool { return r.done }

// Finish hands the accumulator to the caller. After Finish the
// reassembler no longer touches the accumulator; ownership transfers
// wholesale, there is no concurrent mutation to guard against.
func (r *Reassembler) Finish() (*Accumulator, error) {
	if !r.done {
		return nil, errors.Wrapf(ErrIncomplete, "received %d of %d chunks", r.received, r.total)
	}
	acc := r.acc
	r.acc = nil
	return acc, nil
}
