package mc

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// RegionSize is the number of chunks along each horizontal axis of a
// region file.
const RegionSize = 32

// ChunkSize is the edge length of a world chunk in blocks.
const ChunkSize = 16

// RegionPos is a position on the region grid.
type RegionPos struct {
	X, Z int32
}

// ChunkPos is a position on the chunk grid. Y is only meaningful for the
// spatial index's 3D chunk buckets; region files address chunks by X/Z.
type ChunkPos struct {
	X, Y, Z int32
}

// DistanceTo returns the Euclidean distance between two region positions.
func (p RegionPos) DistanceTo(o RegionPos) float64 {
	dx := float64(p.X - o.X)
	dz := float64(p.Z - o.Z)
	return math.Sqrt(dx*dx + dz*dz)
}

// MinChunk returns the chunk-grid position of the region's first chunk.
func (p RegionPos) MinChunk() (cx, cz int32) {
	return p.X * RegionSize, p.Z * RegionSize
}

// RegionBounds is an inclusive rectangle on the region grid.
type RegionBounds struct {
	MinX, MaxX int32
	MinZ, MaxZ int32
}

// Center returns the center of the bounds on the region grid, rounded
// towards the minimum corner.
func (b RegionBounds) Center() RegionPos {
	return RegionPos{
		X: b.MinX + (b.MaxX-b.MinX)/2,
		Z: b.MinZ + (b.MaxZ-b.MinZ)/2,
	}
}

// Extend grows the bounds to include p. The zero RegionBounds is not a
// valid empty value; callers track emptiness separately.
func (b RegionBounds) Extend(p RegionPos) RegionBounds {
	if p.X < b.MinX {
		b.MinX = p.X
	}
	if p.X > b.MaxX {
		b.MaxX = p.X
	}
	if p.Z < b.MinZ {
		b.MinZ = p.Z
	}
	if p.Z > b.MaxZ {
		b.MaxZ = p.Z
	}
	return b
}

// ParseRegionFileName parses a region file name of the form
// "r.<x>.<z>.mca" (or the legacy ".mcr"). The name must be a bare file
// name, not a path.
func ParseRegionFileName(name string) (RegionPos, error) {
	rest, ok := strings.CutPrefix(name, "r.")
	if !ok {
		return RegionPos{}, errors.Errorf("not a region file name: %q", name)
	}
	var found bool
	for _, ext := range []string{".mca", ".mcr"} {
		if s, ok := strings.CutSuffix(rest, ext); ok {
			rest, found = s, true
			break
		}
	}
	if !found {
		return RegionPos{}, errors.Errorf("not a region file name: %q", name)
	}

	dot := strings.IndexByte(rest, '.')
	if dot < 0 || strings.IndexByte(rest[dot+1:], '.') >= 0 {
		return RegionPos{}, errors.Errorf("not a region file name: %q", name)
	}
	x, err := strconv.ParseInt(rest[:dot], 10, 32)
	if err != nil {
		return RegionPos{}, errors.Wrapf(err, "bad region X in %q", name)
	}
	z, err := strconv.ParseInt(rest[dot+1:], 10, 32)
	if err != nil {
		return RegionPos{}, errors.Wrapf(err, "bad region Z in %q", name)
	}
	return RegionPos{X: int32(x), Z: int32(z)}, nil
}

// FloorDiv divides a by b rounding towards negative infinity. Chunk and
// region coordinates of negative block positions depend on this, plain
// integer division would be off by one.
func FloorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
