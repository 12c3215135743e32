// Package worldsave opens a world save (a zip archive or an extracted
// directory) and exposes its region files and metadata to the import
// orchestrator. It never interprets region bytes; that is the decoder's
// job.
package worldsave

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hytopiagg/world-editor-sub010/internal/importer"
	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// levelDataName is the world metadata file inside a save.
const levelDataName = "level.dat"

type entry struct {
	path string
	size int64
	open func() (io.ReadCloser, error)
}

// Save is an opened world save. It holds the zip reader (when the save
// is an archive) for its lifetime; Close releases it.
type Save struct {
	path    string
	regions map[mc.RegionPos]entry
	level   *entry
	closer  io.Closer
}

// Open opens a save at path. Transient open failures are retried with
// capped exponential backoff; a missing path is permanent.
func Open(ctx context.Context, p string) (*Save, error) {
	var save *Save
	op := func() error {
		s, err := open(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return backoff.Permanent(err)
			}
			log.Warnf("open save %v: %v (retrying)", p, err)
			return err
		}
		save = s
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, errors.Wrapf(err, "open world save %v", p)
	}
	return save, nil
}

func open(p string) (*Save, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if fi.IsDir() {
		return openDir(p)
	}
	return openZip(p)
}

func openDir(root string) (*Save, error) {
	s := &Save{path: root, regions: make(map[mc.RegionPos]entry)}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		file := p
		s.consider(filepath.ToSlash(rel), info.Size(), func() (io.ReadCloser, error) {
			return os.Open(file)
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk save directory %v", root)
	}
	return s, nil
}

func openZip(p string) (*Save, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %v", p)
	}
	s := &Save{path: p, regions: make(map[mc.RegionPos]entry), closer: r}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		file := f
		s.consider(f.Name, int64(f.UncompressedSize64), func() (io.ReadCloser, error) {
			return file.Open()
		})
	}
	return s, nil
}

// consider registers an archive member if it is a region file or the
// world metadata. Overworld regions win over dimension folders when
// both carry the same region position.
func (s *Save) consider(name string, size int64, open func() (io.ReadCloser, error)) {
	base := path.Base(name)

	if base == levelDataName {
		if s.level == nil || depth(name) < depth(s.level.path) {
			s.level = &entry{path: name, size: size, open: open}
		}
		return
	}

	pos, err := mc.ParseRegionFileName(base)
	if err != nil {
		return
	}
	e := entry{path: name, size: size, open: open}
	prev, ok := s.regions[pos]
	if !ok {
		s.regions[pos] = e
		return
	}
	if isDimensionPath(prev.path) && !isDimensionPath(name) {
		s.regions[pos] = e
	}
}

func depth(p string) int { return strings.Count(p, "/") }

func isDimensionPath(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if strings.HasPrefix(part, "DIM") {
			return true
		}
	}
	return false
}

// Regions enumerates the save's region tasks in deterministic order.
func (s *Save) Regions(ctx context.Context) ([]importer.RegionTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	tasks := make([]importer.RegionTask, 0, len(s.regions))
	for pos, e := range s.regions {
		tasks = append(tasks, importer.RegionTask{Name: e.path, Pos: pos, Size: e.size})
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Pos.X != tasks[j].Pos.X {
			return tasks[i].Pos.X < tasks[j].Pos.X
		}
		return tasks[i].Pos.Z < tasks[j].Pos.Z
	})
	return tasks, nil
}

// ReadRegion reads one region file wholesale.
func (s *Save) ReadRegion(ctx context.Context, task importer.RegionTask) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	e, ok := s.regions[task.Pos]
	if !ok {
		return nil, errors.Errorf("no region %v in save", task.Name)
	}
	return readAll(e)
}

// LevelData returns the raw world metadata file, or
// importer.ErrNoLevelData when the save has none.
func (s *Save) LevelData(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if s.level == nil {
		return nil, errors.WithStack(importer.ErrNoLevelData)
	}
	return readAll(*s.level)
}

// Name returns a human-readable save name derived from the path.
func (s *Save) Name() string {
	base := filepath.Base(s.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Close releases the underlying archive, if any.
func (s *Save) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func readAll(e entry) ([]byte, error) {
	rc, err := e.open()
	if err != nil {
		return nil, errors.Wrapf(err, "open %v", e.path)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "read %v", e.path)
	}
	return data, nil
}
