package importer

import "github.com/hytopiagg/world-editor-sub010/internal/mc"

// SkipCounters tracks how much was filtered away, per reason. The
// counters feed progress reports; they never trigger errors.
type SkipCounters struct {
	YBounds      uint64 `json:"yBounds"`
	XZBounds     uint64 `json:"xzBounds"`
	RegionBounds uint64 `json:"regionBounds"`
}

// Filter is the pure predicate layer applied to every decoded block. It
// carries running skip counters as its only state.
type Filter struct {
	opts  mc.ImportOptions
	table mc.BlockTable

	Skipped SkipCounters
}

// NewFilter returns a filter for one run. table may be nil, in which
// case the transparency and water options are inert.
func NewFilter(opts mc.ImportOptions, table mc.BlockTable) *Filter {
	return &Filter{opts: opts, table: table}
}

// Keep reports whether entry survives the run's bounds and exclusion
// options. Bounds are inclusive on every edge. Rejections update the
// counters; nothing here can fail.
func (f *Filter) Keep(e mc.BlockEntry) bool {
	if e.BlockID == mc.AirBlock {
		return false
	}
	if f.opts.FilterByCoordinates &&
		(e.X < f.opts.MinX || e.X > f.opts.MaxX || e.Z < f.opts.MinZ || e.Z > f.opts.MaxZ) {
		f.Skipped.XZBounds++
		return false
	}
	if e.Y < f.opts.MinY || e.Y > f.opts.MaxY {
		f.Skipped.YBounds++
		return false
	}
	if f.table != nil {
		if f.opts.ExcludeTransparentBlocks && f.table.IsTransparent(e.BlockID) {
			return false
		}
		if f.opts.ExcludeWaterBlocks && f.table.IsWater(e.BlockID) {
			return false
		}
	}
	return true
}

// ChunkSelector returns the chunk-grid pre-filter for this run: the
// sampling factor and, when coordinate filtering is on, the X/Z window
// coarsened to chunk granularity. It is handed to the decoder so
// rejected chunks are never decoded.
func (f *Filter) ChunkSelector() ChunkSelector {
	opts := f.opts
	return func(cx, cz int32) bool {
		if n := int32(opts.ChunkSamplingFactor); n > 1 {
			if cx%n != 0 || cz%n != 0 {
				return false
			}
		}
		if opts.FilterByCoordinates {
			minX, maxX := cx*mc.ChunkSize, cx*mc.ChunkSize+mc.ChunkSize-1
			minZ, maxZ := cz*mc.ChunkSize, cz*mc.ChunkSize+mc.ChunkSize-1
			if maxX < opts.MinX || minX > opts.MaxX || maxZ < opts.MinZ || minZ > opts.MaxZ {
				return false
			}
		}
		return true
	}
}
