// Package anvil decodes Minecraft region files behind the importer's
// Decoder boundary. It handles the region sector container and the
// palette-compressed section format of 1.18+ worlds; the NBT tag trees
// themselves are decoded by the oriumgames/nbt codec.
package anvil

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

const (
	sectorSize = 4096
	// The header is two sectors: 1024 chunk locations, 1024 timestamps.
	headerSize = 2 * sectorSize

	compressionGzip = 1
	compressionZlib = 2
	compressionNone = 3
)

// chunkPayload extracts and decompresses the payload of the chunk at
// region-local (x, z). The second return is false when the chunk is not
// present in the file, which is common and not an error.
func chunkPayload(data []byte, x, z int) ([]byte, bool, error) {
	if len(data) < headerSize {
		return nil, false, errors.Errorf("region file too short: %d bytes", len(data))
	}

	loc := binary.BigEndian.Uint32(data[4*(x+z*32):])
	sectorIndex := loc >> 8
	sectorCount := loc & 0xFF
	if sectorIndex == 0 || sectorCount == 0 {
		return nil, false, nil
	}

	start := int64(sectorIndex) * sectorSize
	end := start + int64(sectorCount)*sectorSize
	if end > int64(len(data)) {
		return nil, false, errors.Errorf("chunk (%d,%d) points past end of file", x, z)
	}

	sector := data[start:end]
	if len(sector) < 5 {
		return nil, false, errors.Errorf("chunk (%d,%d) sector too short", x, z)
	}
	length := binary.BigEndian.Uint32(sector)
	if length == 0 || int64(length)+4 > int64(len(sector)) {
		return nil, false, errors.Errorf("chunk (%d,%d) length %d exceeds its sectors", x, z, length)
	}
	scheme := sector[4]
	payload := sector[5 : 4+length]

	switch scheme {
	case compressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, false, errors.Wrapf(err, "chunk (%d,%d) gzip", x, z)
		}
		defer r.Close()
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, false, errors.Wrapf(err, "chunk (%d,%d) gzip", x, z)
		}
		return raw, true, nil
	case compressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, false, errors.Wrapf(err, "chunk (%d,%d) zlib", x, z)
		}
		defer r.Close()
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, false, errors.Wrapf(err, "chunk (%d,%d) zlib", x, z)
		}
		return raw, true, nil
	case compressionNone:
		return payload, true, nil
	default:
		return nil, false, errors.Errorf("chunk (%d,%d) unknown compression scheme %d", x, z, scheme)
	}
}
