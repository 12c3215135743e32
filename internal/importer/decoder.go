// Package importer drives a bounded, best-effort scan-then-decode import
// of an externally authored voxel world. The low-level region binary
// format lives behind the Decoder interface; this package owns region
// selection, bounds filtering, resource limits and progress reporting.
package importer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// ErrNoRegionFiles is the fatal error for an archive without any
// recognizable region files.
var ErrNoRegionFiles = errors.New("importer: no region files in world")

// ErrNoLevelData is returned by WorldSource implementations whose save
// has no world metadata. Scanning absorbs it; the version degrades to
// unknown.
var ErrNoLevelData = errors.New("importer: world has no metadata file")

// ErrUnsupportedVersion blocks decoding of worlds older than the
// supported minimum. The archive itself is valid; this is a gate, not a
// parse failure.
var ErrUnsupportedVersion = errors.New("importer: world version below supported minimum")

// RegionTask names one decodable region file of the working set.
type RegionTask struct {
	Name string
	Pos  mc.RegionPos
	Size int64
}

// WorldSource is the archive boundary: anything that can enumerate and
// read region files and the optional world metadata.
type WorldSource interface {
	Regions(ctx context.Context) ([]RegionTask, error)
	ReadRegion(ctx context.Context, task RegionTask) ([]byte, error)
	// LevelData returns the raw metadata file, or ErrNoLevelData.
	LevelData(ctx context.Context) ([]byte, error)
}

// ChunkSelector decides, per chunk-grid position, whether a chunk is
// worth decoding at all. It runs before the decoder touches the chunk's
// payload so rejected chunks cost no decode work.
type ChunkSelector func(cx, cz int32) bool

// DecodedRegion is the decoder's output for one region file.
type DecodedRegion struct {
	Blocks []mc.BlockEntry
	// ChunksSkipped counts chunks the selector rejected before decode.
	ChunksSkipped uint64
}

// Decoder is the external region-binary collaborator. Implementations
// decode one region buffer at a time and classify the block ids they
// hand out.
type Decoder interface {
	DecodeRegion(ctx context.Context, data []byte, pos mc.RegionPos, keep ChunkSelector) (*DecodedRegion, error)
	DetectWorldVersion(data []byte) (mc.WorldVersion, error)
	// Table classifies the block ids this decoder produces.
	Table() mc.BlockTable
}
