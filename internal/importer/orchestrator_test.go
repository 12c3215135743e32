package importer

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// fakeSource serves regions from memory. Region payloads are fabricated;
// the paired fakeDecoder interprets them.
type fakeSource struct {
	regions   []RegionTask
	levelData []byte
	corrupt   map[string]bool
}

func (s *fakeSource) Regions(context.Context) ([]RegionTask, error) {
	out := make([]RegionTask, len(s.regions))
	copy(out, s.regions)
	return out, nil
}

func (s *fakeSource) ReadRegion(_ context.Context, task RegionTask) ([]byte, error) {
	return []byte(task.Name), nil
}

func (s *fakeSource) LevelData(context.Context) ([]byte, error) {
	if s.levelData == nil {
		return nil, ErrNoLevelData
	}
	return s.levelData, nil
}

// fakeDecoder emits blocksPerRegion blocks at the region's first block
// column, ids starting at 1.
type fakeDecoder struct {
	blocksPerRegion int
	corrupt         map[string]bool
	version         mc.WorldVersion
	decoded         []mc.RegionPos
}

func (d *fakeDecoder) DecodeRegion(_ context.Context, data []byte, pos mc.RegionPos, keep ChunkSelector) (*DecodedRegion, error) {
	if d.corrupt[string(data)] {
		return nil, errors.New("corrupt region payload")
	}
	d.decoded = append(d.decoded, pos)
	cx, cz := pos.MinChunk()
	if keep != nil && !keep(cx, cz) {
		return &DecodedRegion{ChunksSkipped: 1}, nil
	}
	out := &DecodedRegion{}
	for i := 0; i < d.blocksPerRegion; i++ {
		out.Blocks = append(out.Blocks, mc.BlockEntry{
			X:       cx * mc.ChunkSize,
			Y:       int32(20 + i),
			Z:       cz * mc.ChunkSize,
			BlockID: uint32(i + 1),
		})
	}
	return out, nil
}

func (d *fakeDecoder) DetectWorldVersion([]byte) (mc.WorldVersion, error) {
	return d.version, nil
}

func (d *fakeDecoder) Table() mc.BlockTable { return nil }

func task(x, z int32) RegionTask {
	return RegionTask{Name: mc.Key(x, 0, z), Pos: mc.RegionPos{X: x, Z: z}, Size: 4096}
}

func wideOptions() mc.ImportOptions {
	opts := mc.DefaultImportOptions()
	opts.FilterByCoordinates = false
	opts.MinY, opts.MaxY = -64, 320
	opts.LimitRegions = false
	return opts
}

func TestScanWorldSize(t *testing.T) {
	src := &fakeSource{regions: []RegionTask{task(-2, 1), task(0, 0), task(3, -1)}}
	dec := &fakeDecoder{version: 3120}
	src.levelData = []byte("level")

	o := New(src, dec)
	info, err := o.ScanWorldSize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.RegionCount != 3 || info.TotalBytes != 3*4096 {
		t.Fatalf("info = %+v", info)
	}
	want := mc.RegionBounds{MinX: -2, MaxX: 3, MinZ: -1, MaxZ: 1}
	if info.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", info.Bounds, want)
	}
	if info.Version != 3120 {
		t.Fatalf("version = %v", info.Version)
	}
	if o.State() != StateAwaitingBounds {
		t.Fatalf("state = %v", o.State())
	}
}

func TestScanWithoutMetadataDegradesToUnknown(t *testing.T) {
	src := &fakeSource{regions: []RegionTask{task(0, 0)}}
	o := New(src, &fakeDecoder{version: 3120})
	info, err := o.ScanWorldSize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != mc.UnknownVersion {
		t.Fatalf("version = %v, want unknown", info.Version)
	}
}

func TestScanFailsWithoutRegions(t *testing.T) {
	o := New(&fakeSource{}, &fakeDecoder{})
	_, err := o.ScanWorldSize(context.Background())
	if !errors.Is(err, ErrNoRegionFiles) {
		t.Fatalf("err = %v, want ErrNoRegionFiles", err)
	}
	if o.State() != StateFailed {
		t.Fatalf("state = %v, want failed", o.State())
	}
}

func TestParseWorldCorruptRegionIsSkipped(t *testing.T) {
	src := &fakeSource{regions: []RegionTask{task(0, 0), task(1, 0), task(2, 0)}}
	dec := &fakeDecoder{
		blocksPerRegion: 10,
		corrupt:         map[string]bool{task(1, 0).Name: true},
	}
	o := New(src, dec)

	res, err := o.ParseWorld(context.Background(), wideOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.RegionsProcessed != 2 || res.Stats.RegionsWithErrors != 1 {
		t.Fatalf("stats = %+v", res.Stats)
	}
	if len(res.Blocks) != 20 {
		t.Fatalf("blocks = %d, want 20", len(res.Blocks))
	}
	if o.State() != StateReady {
		t.Fatalf("state = %v, want ready", o.State())
	}
}

func TestParseWorldAllRegionsCorruptFails(t *testing.T) {
	src := &fakeSource{regions: []RegionTask{task(0, 0), task(1, 0)}}
	dec := &fakeDecoder{corrupt: map[string]bool{
		task(0, 0).Name: true,
		task(1, 0).Name: true,
	}}
	o := New(src, dec)

	_, err := o.ParseWorld(context.Background(), wideOptions())
	if err == nil {
		t.Fatal("want failure when zero regions decode")
	}
	if o.State() != StateFailed {
		t.Fatalf("state = %v, want failed", o.State())
	}
}

func TestParseWorldMemoryStop(t *testing.T) {
	src := &fakeSource{regions: []RegionTask{task(0, 0), task(1, 0), task(2, 0)}}
	dec := &fakeDecoder{blocksPerRegion: 5}
	sampler := func() MemoryStatus { return MemoryStatus{UsedMB: 50, TotalMB: 64} }

	opts := wideOptions()
	opts.MemoryLimit = 1

	o := New(src, dec, WithMemorySampler(sampler), WithMemoryCheckInterval(1))
	res, err := o.ParseWorld(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.MemoryStopped {
		t.Fatal("run did not report a memory stop")
	}
	if res.Stats.RegionsProcessed != 1 {
		t.Fatalf("processed %d regions, want 1", res.Stats.RegionsProcessed)
	}
	if len(res.Blocks) != 5 {
		t.Fatalf("blocks = %d, want the first region's 5", len(res.Blocks))
	}
	if o.State() != StateMemoryStopped {
		t.Fatalf("state = %v", o.State())
	}
}

func TestParseWorldRegionCapKeepsClosest(t *testing.T) {
	src := &fakeSource{regions: []RegionTask{
		task(10, 10), task(0, 0), task(1, 0), task(-9, 4), task(0, 1),
	}}
	dec := &fakeDecoder{blocksPerRegion: 1}

	opts := wideOptions()
	opts.LimitRegions = true
	opts.MaxRegions = 3

	o := New(src, dec)
	res, err := o.ParseWorld(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.TotalRegions != 3 {
		t.Fatalf("TotalRegions = %d, want 3 after truncation", res.Stats.TotalRegions)
	}
	if res.Stats.Skipped.RegionBounds != 2 {
		t.Fatalf("RegionBounds counter = %d, want 2", res.Stats.Skipped.RegionBounds)
	}
	for _, pos := range dec.decoded {
		if pos == (mc.RegionPos{X: 10, Z: 10}) || pos == (mc.RegionPos{X: -9, Z: 4}) {
			t.Fatalf("far region %+v decoded despite cap", pos)
		}
	}
}

func TestParseWorldBlockCapStops(t *testing.T) {
	src := &fakeSource{regions: []RegionTask{task(0, 0), task(1, 0), task(2, 0)}}
	dec := &fakeDecoder{blocksPerRegion: 10}

	opts := wideOptions()
	opts.MaxBlocks = 15

	o := New(src, dec)
	res, err := o.ParseWorld(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Blocks) != 15 {
		t.Fatalf("blocks = %d, want exactly the cap", len(res.Blocks))
	}
	if len(dec.decoded) != 2 {
		t.Fatalf("decoded %d regions, want decode to stop after the cap", len(dec.decoded))
	}
}

func TestParseWorldVersionGate(t *testing.T) {
	src := &fakeSource{
		regions:   []RegionTask{task(0, 0)},
		levelData: []byte("level"),
	}
	dec := &fakeDecoder{version: 100} // far below minimum
	o := New(src, dec)

	_, err := o.ParseWorld(context.Background(), wideOptions())
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	src := &fakeSource{regions: []RegionTask{task(0, 0), task(1, 0), task(0, 1), task(1, 1)}}
	dec := &fakeDecoder{blocksPerRegion: 2}

	var percents []int
	o := New(src, dec, WithProgress(func(r ProgressReport) {
		percents = append(percents, r.Percent)
	}))
	if _, err := o.ParseWorld(context.Background(), wideOptions()); err != nil {
		t.Fatal(err)
	}
	last := -1
	for _, p := range percents {
		if p < last {
			t.Fatalf("progress went backwards: %v", percents)
		}
		last = p
	}
	if last != 100 {
		t.Fatalf("final percent = %d, want 100", last)
	}
}

func TestMemoryStoppedRunStillFinishesProgress(t *testing.T) {
	src := &fakeSource{regions: []RegionTask{task(0, 0), task(1, 0), task(0, 1)}}
	dec := &fakeDecoder{blocksPerRegion: 2}

	var last int
	o := New(src, dec,
		WithProgress(func(r ProgressReport) { last = r.Percent }),
		WithMemorySampler(func() MemoryStatus { return MemoryStatus{UsedMB: 5000} }),
		WithMemoryCheckInterval(1))

	opts := wideOptions()
	opts.MemoryLimit = 1
	result, err := o.ParseWorld(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !result.MemoryStopped {
		t.Fatal("run did not stop at the memory limit")
	}
	if last != 100 {
		t.Fatalf("final percent = %d, want 100", last)
	}
}
