package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// State is the orchestrator's lifecycle position. Transitions are
// one-way within a run; a new run starts from a new orchestrator.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateAwaitingBounds
	StateDecoding
	StateCombining
	StateReady
	StateMemoryStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateAwaitingBounds:
		return "awaitingBounds"
	case StateDecoding:
		return "decoding"
	case StateCombining:
		return "combining"
	case StateReady:
		return "ready"
	case StateMemoryStopped:
		return "memoryStopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// memoryCheckInterval is how many regions are decoded between memory
// samples.
const memoryCheckInterval = 5

// ProgressReport is one progress emission. Percent is monotonic for a
// given run.
type ProgressReport struct {
	Message string
	Percent int
	Memory  *MemoryStatus
	Skipped *SkipCounters
}

// ProgressFunc observes progress. It is called from the orchestrator's
// goroutine between units of work, never concurrently.
type ProgressFunc func(ProgressReport)

// WorldSizeInfo is the scan phase's summary. No blocks are materialized
// to produce it.
type WorldSizeInfo struct {
	Bounds      mc.RegionBounds
	RegionCount int
	TotalBytes  int64
	Version     mc.WorldVersion
}

// ParseStats summarizes a completed decode phase.
type ParseStats struct {
	RegionsProcessed  int
	RegionsWithErrors int
	TotalRegions      int
	TotalBlocks       int
	ChunksSkipped     uint64
	Skipped           SkipCounters
}

// ParseResult is the decode phase's output: the surviving blocks plus
// statistics. MemoryStopped marks a deliberate early stop, which is not
// an error.
type ParseResult struct {
	Blocks        []mc.BlockEntry
	Stats         ParseStats
	Version       mc.WorldVersion
	MemoryStopped bool
}

// Orchestrator drives one import run. It is not safe for concurrent use;
// the host observes it only through progress callbacks and return
// values.
type Orchestrator struct {
	src WorldSource
	dec Decoder

	progress ProgressFunc
	sample   MemorySampler
	memEvery int

	state       State
	lastPercent int
	version     mc.WorldVersion
	scanned     *WorldSizeInfo
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress installs a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithMemorySampler overrides how memory usage is measured.
func WithMemorySampler(fn MemorySampler) Option {
	return func(o *Orchestrator) { o.sample = fn }
}

// WithMemoryCheckInterval overrides the region cadence of memory checks.
func WithMemoryCheckInterval(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.memEvery = n
		}
	}
}

// New returns an orchestrator for one run over src using dec.
func New(src WorldSource, dec Decoder, options ...Option) *Orchestrator {
	o := &Orchestrator{
		src:      src,
		dec:      dec,
		sample:   RuntimeMemorySampler,
		memEvery: memoryCheckInterval,
		state:    StateIdle,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// ScanWorldSize enumerates the save without decoding blocks: region
// grid bounds, counts, byte totals and the world version if metadata is
// present. Missing metadata degrades to an unknown version, it never
// fails the scan.
func (o *Orchestrator) ScanWorldSize(ctx context.Context) (*WorldSizeInfo, error) {
	o.state = StateScanning
	o.report("Scanning world", 0, nil)

	tasks, err := o.src.Regions(ctx)
	if err != nil {
		o.state = StateFailed
		return nil, errors.Wrap(err, "enumerate regions")
	}
	if len(tasks) == 0 {
		o.state = StateFailed
		return nil, errors.WithStack(ErrNoRegionFiles)
	}

	info := &WorldSizeInfo{RegionCount: len(tasks)}
	info.Bounds = mc.RegionBounds{
		MinX: tasks[0].Pos.X, MaxX: tasks[0].Pos.X,
		MinZ: tasks[0].Pos.Z, MaxZ: tasks[0].Pos.Z,
	}
	for _, t := range tasks {
		info.Bounds = info.Bounds.Extend(t.Pos)
		info.TotalBytes += t.Size
	}

	info.Version = o.detectVersion(ctx)
	o.version = info.Version
	o.scanned = info

	o.state = StateAwaitingBounds
	o.report(fmt.Sprintf("Found %d regions", len(tasks)), 10, nil)
	return info, nil
}

func (o *Orchestrator) detectVersion(ctx context.Context) mc.WorldVersion {
	raw, err := o.src.LevelData(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoLevelData) {
			log.Warnf("could not read world metadata: %v", err)
		}
		return mc.UnknownVersion
	}
	v, err := o.dec.DetectWorldVersion(raw)
	if err != nil {
		log.Warnf("could not detect world version: %v", err)
		return mc.UnknownVersion
	}
	return v
}

// ParseWorld runs the decode phase with user-confirmed options. When
// called without a prior ScanWorldSize it scans first. The run is
// best-effort: corrupt regions are skipped and counted, the memory cap
// stops early with partial results, and only a run yielding zero decoded
// regions and zero blocks fails.
func (o *Orchestrator) ParseWorld(ctx context.Context, opts mc.ImportOptions) (*ParseResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if o.state == StateIdle {
		if _, err := o.ScanWorldSize(ctx); err != nil {
			return nil, err
		}
	}
	if o.state != StateAwaitingBounds {
		return nil, errors.Errorf("importer: cannot parse in state %v", o.state)
	}
	if !o.version.Supported() {
		o.state = StateFailed
		return nil, errors.Wrapf(ErrUnsupportedVersion,
			"world version %v, minimum %v", o.version, mc.MinSupportedDataVersion)
	}

	o.state = StateDecoding

	tasks, err := o.src.Regions(ctx)
	if err != nil {
		o.state = StateFailed
		return nil, errors.Wrap(err, "enumerate regions")
	}
	if len(tasks) == 0 {
		o.state = StateFailed
		return nil, errors.WithStack(ErrNoRegionFiles)
	}

	filter := NewFilter(opts, o.dec.Table())
	tasks = o.selectRegions(tasks, opts, filter)
	selector := filter.ChunkSelector()

	result := &ParseResult{Version: o.version}
	result.Stats.TotalRegions = len(tasks)

	capReached := false

decode:
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			o.state = StateFailed
			return nil, errors.WithStack(err)
		}

		data, err := o.src.ReadRegion(ctx, task)
		if err != nil {
			log.Warnf("region %v unreadable: %v", task.Name, err)
			result.Stats.RegionsWithErrors++
		} else {
			decoded, err := o.dec.DecodeRegion(ctx, data, task.Pos, selector)
			if err != nil {
				log.Warnf("region %v failed to decode: %v", task.Name, err)
				result.Stats.RegionsWithErrors++
			} else {
				result.Stats.ChunksSkipped += decoded.ChunksSkipped
				for _, blk := range decoded.Blocks {
					if !filter.Keep(blk) {
						continue
					}
					result.Blocks = append(result.Blocks, blk)
					if opts.MaxBlocks > 0 && uint32(len(result.Blocks)) >= opts.MaxBlocks {
						capReached = true
						break
					}
				}
				result.Stats.RegionsProcessed++
			}
		}

		percent := 10 + (i+1)*80/len(tasks)
		skipped := filter.Skipped
		o.report(fmt.Sprintf("Processed region %d/%d", i+1, len(tasks)), percent, &skipped)

		if capReached {
			log.Infof("block cap of %d reached, stopping decode", opts.MaxBlocks)
			break decode
		}

		if (i+1)%o.memEvery == 0 || i+1 == len(tasks) {
			mem := o.sample()
			mem.LimitMB = uint64(opts.MemoryLimit)
			o.reportMemory(mem)
			if opts.MemoryLimit > 0 && mem.UsedMB > uint64(opts.MemoryLimit) {
				log.Warnf("memory usage %d MB over limit %d MB, stopping with partial results",
					mem.UsedMB, opts.MemoryLimit)
				result.MemoryStopped = true
				break decode
			}
		}
	}

	result.Stats.TotalBlocks = len(result.Blocks)
	result.Stats.Skipped = filter.Skipped

	if result.Stats.RegionsProcessed == 0 && len(result.Blocks) == 0 {
		o.state = StateFailed
		return nil, errors.Errorf("importer: no region could be decoded (%d of %d failed)",
			result.Stats.RegionsWithErrors, result.Stats.TotalRegions)
	}

	if result.MemoryStopped {
		o.state = StateMemoryStopped
		o.report("Stopped early due to memory limit", 100, nil)
	} else {
		o.state = StateCombining
		o.report("Combining blocks", 90, nil)
		o.state = StateReady
		o.report("World parsed", 100, nil)
	}

	log.Infof("decoded %d/%d regions, %d blocks, %d errors",
		result.Stats.RegionsProcessed, result.Stats.TotalRegions,
		result.Stats.TotalBlocks, result.Stats.RegionsWithErrors)
	return result, nil
}

// selectRegions orders tasks center-out and applies the window and the
// region cap. Truncation happens once, before iteration, so a cut run
// keeps the most central data.
func (o *Orchestrator) selectRegions(tasks []RegionTask, opts mc.ImportOptions, filter *Filter) []RegionTask {
	if opts.FilterByCoordinates {
		kept := tasks[:0]
		for _, t := range tasks {
			minX, minZ := t.Pos.MinChunk()
			minBX, minBZ := minX*mc.ChunkSize, minZ*mc.ChunkSize
			maxBX := minBX + mc.RegionSize*mc.ChunkSize - 1
			maxBZ := minBZ + mc.RegionSize*mc.ChunkSize - 1
			if maxBX < opts.MinX || minBX > opts.MaxX || maxBZ < opts.MinZ || minBZ > opts.MaxZ {
				filter.Skipped.RegionBounds++
				continue
			}
			kept = append(kept, t)
		}
		tasks = kept
	}

	center := regionCenter(tasks, opts)
	sort.SliceStable(tasks, func(i, j int) bool {
		di := tasks[i].Pos.DistanceTo(center)
		dj := tasks[j].Pos.DistanceTo(center)
		if di != dj {
			return di < dj
		}
		if tasks[i].Pos.X != tasks[j].Pos.X {
			return tasks[i].Pos.X < tasks[j].Pos.X
		}
		return tasks[i].Pos.Z < tasks[j].Pos.Z
	})

	if opts.LimitRegions && uint32(len(tasks)) > opts.MaxRegions {
		filter.Skipped.RegionBounds += uint64(uint32(len(tasks)) - opts.MaxRegions)
		tasks = tasks[:opts.MaxRegions]
	}
	return tasks
}

// regionCenter is the center of the active region window: the option
// window when coordinate filtering is on, otherwise the bounds of the
// tasks themselves.
func regionCenter(tasks []RegionTask, opts mc.ImportOptions) mc.RegionPos {
	if opts.FilterByCoordinates {
		span := int32(mc.RegionSize * mc.ChunkSize)
		return mc.RegionBounds{
			MinX: mc.FloorDiv(opts.MinX, span),
			MaxX: mc.FloorDiv(opts.MaxX, span),
			MinZ: mc.FloorDiv(opts.MinZ, span),
			MaxZ: mc.FloorDiv(opts.MaxZ, span),
		}.Center()
	}
	if len(tasks) == 0 {
		return mc.RegionPos{}
	}
	b := mc.RegionBounds{
		MinX: tasks[0].Pos.X, MaxX: tasks[0].Pos.X,
		MinZ: tasks[0].Pos.Z, MaxZ: tasks[0].Pos.Z,
	}
	for _, t := range tasks {
		b = b.Extend(t.Pos)
	}
	return b.Center()
}

func (o *Orchestrator) report(message string, percent int, skipped *SkipCounters) {
	if percent < o.lastPercent {
		percent = o.lastPercent
	}
	o.lastPercent = percent
	if o.progress == nil {
		return
	}
	o.progress(ProgressReport{Message: message, Percent: percent, Skipped: skipped})
}

func (o *Orchestrator) reportMemory(mem MemoryStatus) {
	if o.progress == nil {
		return
	}
	o.progress(ProgressReport{
		Message: fmt.Sprintf("Memory usage %d MB", mem.UsedMB),
		Percent: o.lastPercent,
		Memory:  &mem,
	})
}
