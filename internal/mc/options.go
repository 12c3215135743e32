package mc

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ImportOptions is the immutable per-run configuration of an import. It
// is created once, validated, and never mutated while a run is active.
type ImportOptions struct {
	ExcludeTransparentBlocks bool `json:"excludeTransparentBlocks" yaml:"exclude_transparent_blocks"`
	ExcludeWaterBlocks       bool `json:"excludeWaterBlocks" yaml:"exclude_water_blocks"`

	LimitRegions bool   `json:"limitRegions" yaml:"limit_regions"`
	MaxRegions   uint32 `json:"maxRegions" yaml:"max_regions"`

	MinY int32 `json:"minY" yaml:"min_y"`
	MaxY int32 `json:"maxY" yaml:"max_y"`

	// The X/Z window is only applied when FilterByCoordinates is set.
	FilterByCoordinates bool  `json:"filterByCoordinates" yaml:"filter_by_coordinates"`
	MinX                int32 `json:"minX" yaml:"min_x"`
	MaxX                int32 `json:"maxX" yaml:"max_x"`
	MinZ                int32 `json:"minZ" yaml:"min_z"`
	MaxZ                int32 `json:"maxZ" yaml:"max_z"`

	// ChunkSamplingFactor N keeps one of every N chunks along each
	// horizontal axis. 1 keeps everything.
	ChunkSamplingFactor uint32 `json:"chunkSamplingFactor" yaml:"chunk_sampling_factor"`

	// MaxBlocks caps the number of accepted blocks; 0 means unlimited.
	MaxBlocks uint32 `json:"maxBlocks" yaml:"max_blocks"`

	// MemoryLimit is a soft cap in MB, checked on a fixed cadence during
	// decode. Exceeding it stops the run early with partial results.
	MemoryLimit uint32 `json:"memoryLimit" yaml:"memory_limit"`
}

// DefaultImportOptions returns the documented defaults.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		ExcludeTransparentBlocks: true,
		ExcludeWaterBlocks:       false,
		LimitRegions:             true,
		MaxRegions:               25,
		MinY:                     10,
		MaxY:                     100,
		FilterByCoordinates:      true,
		MinX:                     -150,
		MaxX:                     150,
		MinZ:                     -150,
		MaxZ:                     150,
		ChunkSamplingFactor:      1,
		MaxBlocks:                7_000_000,
		MemoryLimit:              1000,
	}
}

// LoadOptions reads YAML overrides from path on top of the defaults.
func LoadOptions(path string) (ImportOptions, error) {
	opts := DefaultImportOptions()
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.WithStack(err)
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, errors.Wrapf(err, "parse options file %v", path)
	}
	if err := opts.Validate(); err != nil {
		return opts, errors.Wrapf(err, "options file %v", path)
	}
	return opts, nil
}

// Validate checks range sanity. It does not fill defaults.
func (o ImportOptions) Validate() error {
	if o.MinY > o.MaxY {
		return errors.Errorf("min_y %d above max_y %d", o.MinY, o.MaxY)
	}
	if o.FilterByCoordinates {
		if o.MinX > o.MaxX {
			return errors.Errorf("min_x %d above max_x %d", o.MinX, o.MaxX)
		}
		if o.MinZ > o.MaxZ {
			return errors.Errorf("min_z %d above max_z %d", o.MinZ, o.MaxZ)
		}
	}
	if o.ChunkSamplingFactor == 0 {
		return errors.New("chunk_sampling_factor must be at least 1")
	}
	if o.LimitRegions && o.MaxRegions == 0 {
		return errors.New("max_regions must be at least 1 when limit_regions is set")
	}
	return nil
}
