package worldsave

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/hytopiagg/world-editor-sub010/internal/importer"
	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

func writeWorldDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string][]byte{
		"level.dat":              []byte("meta"),
		"region/r.0.0.mca":       []byte("region00"),
		"region/r.-1.2.mca":      []byte("region-12"),
		"DIM-1/region/r.0.0.mca": []byte("nether00"),
		"region/notaregion.txt":  []byte("ignore"),
	}
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestOpenDirectorySave(t *testing.T) {
	ctx := context.Background()
	save, err := Open(ctx, writeWorldDir(t))
	if err != nil {
		t.Fatal(err)
	}
	defer save.Close()

	tasks, err := save.Regions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d region tasks, want 2: %+v", len(tasks), tasks)
	}

	var zeroZero importer.RegionTask
	for _, task := range tasks {
		if task.Pos == (mc.RegionPos{X: 0, Z: 0}) {
			zeroZero = task
		}
	}
	data, err := save.ReadRegion(ctx, zeroZero)
	if err != nil {
		t.Fatal(err)
	}
	// The overworld copy wins over DIM-1.
	if string(data) != "region00" {
		t.Fatalf("region (0,0) data = %q", data)
	}

	level, err := save.LevelData(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(level) != "meta" {
		t.Fatalf("level data = %q", level)
	}
}

func TestOpenZipSave(t *testing.T) {
	root := t.TempDir()
	archive := filepath.Join(root, "world.zip")

	f, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, data := range map[string][]byte{
		"MyWorld/level.dat":        []byte("meta"),
		"MyWorld/region/r.3.4.mca": []byte("payload"),
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	save, err := Open(ctx, archive)
	if err != nil {
		t.Fatal(err)
	}
	defer save.Close()

	tasks, err := save.Regions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Pos != (mc.RegionPos{X: 3, Z: 4}) {
		t.Fatalf("tasks = %+v", tasks)
	}
	data, err := save.ReadRegion(ctx, tasks[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Fatalf("region data = %q", data)
	}
	if save.Name() != "world" {
		t.Fatalf("Name() = %q", save.Name())
	}
}

func TestMissingLevelDataIsSentinel(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "region", "r.0.0.mca")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	save, err := Open(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	defer save.Close()

	if _, err := save.LevelData(ctx); !errors.Is(err, importer.ErrNoLevelData) {
		t.Fatalf("err = %v, want ErrNoLevelData", err)
	}
}

func TestOpenMissingPathFailsFast(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("open of a missing path succeeded")
	}
}
