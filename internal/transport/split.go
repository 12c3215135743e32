// Package transport moves a potentially multi-million-entry block set
// across an execution boundary in bounded, ordered pieces and
// reassembles it on the far side without monopolizing the receiver.
package transport

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// DefaultPieceSize is the number of block entries per transfer piece.
const DefaultPieceSize = 100_000

// BlockChunk is one piece of a chunked block transfer. ChunkID is
// 1-based and strictly increasing; the reassembler relies on delivery
// order, there is no sort step on the receiving side.
type BlockChunk struct {
	ChunkID     uint32          `json:"chunkId"`
	TotalChunks uint32          `json:"totalChunks"`
	Blocks      []mc.KeyedBlock `json:"blocks"`
}

// Sink receives transfer pieces in order.
type Sink func(ctx context.Context, chunk BlockChunk) error

// Split cuts blocks into pieces of at most pieceSize entries and feeds
// them to sink in increasing ChunkID order. The piece slices alias the
// input; the input must not be mutated until the sink is done with it.
func Split(ctx context.Context, blocks []mc.KeyedBlock, pieceSize int, sink Sink) error {
	if pieceSize <= 0 {
		pieceSize = DefaultPieceSize
	}
	total := uint32((len(blocks) + pieceSize - 1) / pieceSize)
	if total == 0 {
		// An empty block set still announces itself so the receiver can
		// complete with zero blocks.
		total = 1
	}

	for id := uint32(1); id <= total; id++ {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		lo := int(id-1) * pieceSize
		hi := lo + pieceSize
		if lo > len(blocks) {
			lo = len(blocks)
		}
		if hi > len(blocks) {
			hi = len(blocks)
		}
		chunk := BlockChunk{
			ChunkID:     id,
			TotalChunks: total,
			Blocks:      blocks[lo:hi],
		}
		if err := sink(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}
