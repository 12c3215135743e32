package anvil

import (
	"bytes"
	"context"
	"math/bits"

	"github.com/oriumgames/nbt"
	"github.com/pkg/errors"

	"github.com/hytopiagg/world-editor-sub010/internal/importer"
	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// Decoder implements importer.Decoder for anvil region files. It owns
// the run's block palette: names seen across all regions are assigned
// stable ids, with id 0 reserved for air.
type Decoder struct {
	palette *mc.Palette
}

// NewDecoder returns a decoder with a fresh palette.
func NewDecoder() *Decoder {
	return &Decoder{palette: mc.NewPalette()}
}

// Palette exposes the id-to-name mapping accumulated so far.
func (d *Decoder) Palette() *mc.Palette { return d.palette }

// Table implements importer.Decoder.
func (d *Decoder) Table() mc.BlockTable { return d.palette }

type chunkNBT struct {
	DataVersion int32        `nbt:"DataVersion"`
	Status      string       `nbt:"Status"`
	Sections    []sectionNBT `nbt:"sections"`
}

// Y is a TAG_Byte; the nbt codec only maps those to uint8, so the
// signed section index (-4..19 in 1.18+) is recovered with an int8
// round-trip when computing the base height.
type sectionNBT struct {
	Y           uint8          `nbt:"Y"`
	BlockStates blockStatesNBT `nbt:"block_states,omitempty"`
}

type blockStatesNBT struct {
	Palette []paletteEntryNBT `nbt:"palette"`
	Data    []int64           `nbt:"data,array,omitempty"`
}

type paletteEntryNBT struct {
	Name string `nbt:"Name"`
}

// DecodeRegion decodes every present chunk the selector keeps. Chunks
// that fail to decode are skipped individually; the region only fails
// as a whole when it is structurally broken or no present chunk could
// be decoded.
func (d *Decoder) DecodeRegion(ctx context.Context, data []byte, pos mc.RegionPos, keep importer.ChunkSelector) (*importer.DecodedRegion, error) {
	if len(data) < headerSize {
		return nil, errors.Errorf("region %v,%v: file too short (%d bytes)", pos.X, pos.Z, len(data))
	}

	out := &importer.DecodedRegion{}
	present, decoded := 0, 0

	for z := 0; z < mc.RegionSize; z++ {
		for x := 0; x < mc.RegionSize; x++ {
			if err := ctx.Err(); err != nil {
				return nil, errors.WithStack(err)
			}
			cx := pos.X*mc.RegionSize + int32(x)
			cz := pos.Z*mc.RegionSize + int32(z)
			if keep != nil && !keep(cx, cz) {
				out.ChunksSkipped++
				continue
			}

			payload, ok, err := chunkPayload(data, x, z)
			if err != nil || !ok {
				if err != nil {
					present++
				}
				continue
			}
			present++

			if err := d.decodeChunk(payload, cx, cz, out); err != nil {
				continue
			}
			decoded++
		}
	}

	if present > 0 && decoded == 0 {
		return nil, errors.Errorf("region %v,%v: none of %d present chunks decoded", pos.X, pos.Z, present)
	}
	return out, nil
}

func (d *Decoder) decodeChunk(payload []byte, cx, cz int32, out *importer.DecodedRegion) error {
	var chunk chunkNBT
	if err := nbt.NewDecoderWithEncoding(bytes.NewReader(payload), nbt.BigEndian).Decode(&chunk); err != nil {
		return errors.Wrap(err, "decode chunk nbt")
	}
	if chunk.DataVersion != 0 && mc.WorldVersion(chunk.DataVersion) < mc.MinSupportedDataVersion {
		return errors.Errorf("chunk data version %d unsupported", chunk.DataVersion)
	}

	for _, section := range chunk.Sections {
		d.decodeSection(section, cx, cz, out)
	}
	return nil
}

func (d *Decoder) decodeSection(section sectionNBT, cx, cz int32, out *importer.DecodedRegion) {
	states := section.BlockStates
	if len(states.Palette) == 0 {
		return
	}

	ids := make([]uint32, len(states.Palette))
	allAir := true
	for i, e := range states.Palette {
		ids[i] = d.palette.ID(e.Name)
		if ids[i] != mc.AirBlock {
			allAir = false
		}
	}
	if allAir {
		return
	}

	baseY := int32(int8(section.Y)) * mc.ChunkSize

	// A section with a palette but no data array is filled with the
	// palette's single entry.
	if len(states.Data) == 0 {
		d.emitFilled(ids[0], cx, cz, baseY, out)
		return
	}

	bitsPer := paletteBits(len(states.Palette))
	perLong := 64 / bitsPer
	mask := uint64(1)<<bitsPer - 1

	for i := 0; i < 4096; i++ {
		longIdx := i / perLong
		if longIdx >= len(states.Data) {
			break
		}
		shift := uint(i%perLong) * uint(bitsPer)
		v := uint64(states.Data[longIdx]) >> shift & mask
		if int(v) >= len(ids) {
			continue
		}
		id := ids[v]
		if id == mc.AirBlock {
			continue
		}
		out.Blocks = append(out.Blocks, mc.BlockEntry{
			X:       cx*mc.ChunkSize + int32(i&15),
			Y:       baseY + int32(i>>8),
			Z:       cz*mc.ChunkSize + int32(i>>4&15),
			BlockID: id,
		})
	}
}

func (d *Decoder) emitFilled(id uint32, cx, cz, baseY int32, out *importer.DecodedRegion) {
	if id == mc.AirBlock {
		return
	}
	for i := 0; i < 4096; i++ {
		out.Blocks = append(out.Blocks, mc.BlockEntry{
			X:       cx*mc.ChunkSize + int32(i&15),
			Y:       baseY + int32(i>>8),
			Z:       cz*mc.ChunkSize + int32(i>>4&15),
			BlockID: id,
		})
	}
}

// paletteBits is the packed index width for a palette of size n: at
// least 4 bits, more when the palette needs them. Indices never span
// longs in the supported versions.
func paletteBits(n int) int {
	if n <= 1 {
		return 4
	}
	b := bits.Len32(uint32(n - 1))
	if b < 4 {
		b = 4
	}
	return b
}
