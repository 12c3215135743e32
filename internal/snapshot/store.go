// Package snapshot persists combined block sets on disk so a finished
// import can be reloaded without re-decoding the archive. The serialized
// record stream is cut into content-defined chunks addressed by their
// hash, deduplicating blobs across snapshots of overlapping worlds.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	sha256 "github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"github.com/restic/chunker"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// chunkerPolynomial is fixed so identical block data always cuts into
// identical blobs, across runs and across stores.
const chunkerPolynomial = chunker.Pol(0x3DA3358B4DC173)

// recordSize is one serialized block entry: x, y, z int32 plus a uint32
// id, little endian.
const recordSize = 16

// loadConcurrency bounds how many blobs load at once.
const loadConcurrency = 4

// Manifest describes one stored snapshot.
type Manifest struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Blocks    int       `json:"blocks"`
	Blobs     []string  `json:"blobs"`
}

// Store is a directory-backed snapshot store.
type Store struct {
	root string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// NewStore opens (creating if needed) a store rooted at root.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{filepath.Join(root, "blobs"), filepath.Join(root, "manifests")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decoder")
	}
	return &Store{root: root, enc: enc, dec: dec}, nil
}

// Save writes blocks as a snapshot named name and returns the snapshot
// id. Entries with malformed keys are dropped; they cannot round-trip
// through the fixed-width record format.
func (s *Store) Save(ctx context.Context, name string, blocks []mc.KeyedBlock) (string, error) {
	raw := make([]byte, 0, len(blocks)*recordSize)
	stored := 0
	var rec [recordSize]byte
	for _, blk := range blocks {
		x, y, z, err := mc.ParseKey(blk.Key)
		if err != nil {
			log.Warnf("snapshot: dropping block with bad key %q", blk.Key)
			continue
		}
		binary.LittleEndian.PutUint32(rec[0:], uint32(x))
		binary.LittleEndian.PutUint32(rec[4:], uint32(y))
		binary.LittleEndian.PutUint32(rec[8:], uint32(z))
		binary.LittleEndian.PutUint32(rec[12:], blk.BlockID)
		raw = append(raw, rec[:]...)
		stored++
	}

	manifest := Manifest{
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Blocks:    stored,
		Blobs:     []string{},
	}

	cnkr := chunker.New(bytes.NewReader(raw), chunkerPolynomial)
	buf := make([]byte, chunker.MaxSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", errors.WithStack(err)
		}
		chunk, err := cnkr.Next(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "chunk snapshot data")
		}
		id, err := s.saveBlob(chunk.Data)
		if err != nil {
			return "", err
		}
		manifest.Blobs = append(manifest.Blobs, id)
	}

	return s.saveManifest(manifest)
}

func (s *Store) saveBlob(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])
	path := filepath.Join(s.root, "blobs", id)

	if _, err := os.Stat(path); err == nil {
		// Already stored by an earlier snapshot.
		return id, nil
	}
	if err := os.WriteFile(path, s.enc.EncodeAll(data, nil), 0o644); err != nil {
		return "", errors.Wrapf(err, "write blob %v", id)
	}
	return id, nil
}

func (s *Store) saveManifest(m Manifest) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", errors.WithStack(err)
	}
	sum := sha256.Sum256(raw)
	id := hex.EncodeToString(sum[:])
	path := filepath.Join(s.root, "manifests", id+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", errors.Wrapf(err, "write manifest %v", id)
	}
	log.Infof("snapshot %v saved: %d blocks in %d blobs", id[:8], m.Blocks, len(m.Blobs))
	return id, nil
}

// Load reads the snapshot with the given id, returning its blocks in
// the order they were saved.
func (s *Store) Load(ctx context.Context, id string) ([]mc.KeyedBlock, *Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(s.root, "manifests", id+".json"))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read manifest %v", id)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, nil, errors.Wrapf(err, "decode manifest %v", id)
	}

	// Blobs load concurrently; the indexed slice keeps the record
	// stream in manifest order.
	blobs := make([][]byte, len(manifest.Blobs))
	wg, wgCtx := errgroup.WithContext(ctx)
	wg.SetLimit(loadConcurrency)
	for i, blobID := range manifest.Blobs {
		i, blobID := i, blobID
		wg.Go(func() error {
			if err := wgCtx.Err(); err != nil {
				return errors.WithStack(err)
			}
			compressed, err := os.ReadFile(filepath.Join(s.root, "blobs", blobID))
			if err != nil {
				return errors.Wrapf(err, "read blob %v", blobID)
			}
			blob, err := s.dec.DecodeAll(compressed, nil)
			if err != nil {
				return errors.Wrapf(err, "decompress blob %v", blobID)
			}
			sum := sha256.Sum256(blob)
			if hex.EncodeToString(sum[:]) != blobID {
				return errors.Errorf("blob %v content mismatch", blobID)
			}
			blobs[i] = blob
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, nil, err
	}

	var data []byte
	for _, blob := range blobs {
		data = append(data, blob...)
	}

	if len(data)%recordSize != 0 {
		return nil, nil, errors.Errorf("snapshot %v data not record-aligned: %d bytes", id, len(data))
	}
	blocks := make([]mc.KeyedBlock, 0, len(data)/recordSize)
	for off := 0; off < len(data); off += recordSize {
		x := int32(binary.LittleEndian.Uint32(data[off:]))
		y := int32(binary.LittleEndian.Uint32(data[off+4:]))
		z := int32(binary.LittleEndian.Uint32(data[off+8:]))
		bid := binary.LittleEndian.Uint32(data[off+12:])
		blocks = append(blocks, mc.KeyedBlock{Key: mc.Key(x, y, z), BlockID: bid})
	}
	return blocks, &manifest, nil
}

// List returns the manifests of every stored snapshot, newest first.
func (s *Store) List() ([]Manifest, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "manifests"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	manifests := make([]Manifest, 0, len(entries))
	for _, e := range entries {
		raw, err := os.ReadFile(filepath.Join(s.root, "manifests", e.Name()))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		var m Manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errors.Wrapf(err, "decode manifest %v", e.Name())
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].CreatedAt.After(manifests[j].CreatedAt)
	})
	return manifests, nil
}
