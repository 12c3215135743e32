package mc

import "strings"

// AirBlock is the block id reserved for air. Air never enters the
// spatial index and is dropped by the bounds filter.
const AirBlock uint32 = 0

// BlockEntry is one voxel: a world position and the palette id of the
// block occupying it.
type BlockEntry struct {
	X, Y, Z int32
	BlockID uint32
}

// KeyedBlock pairs a canonical position key with a block id. This is the
// shape blocks travel in across the transport boundary, where positions
// are map keys rather than struct fields.
type KeyedBlock struct {
	Key     string
	BlockID uint32
}

// Keyed converts e to its transport representation.
func (e BlockEntry) Keyed() KeyedBlock {
	return KeyedBlock{Key: Key(e.X, e.Y, e.Z), BlockID: e.BlockID}
}

// BlockTable classifies block ids. It is supplied by whoever owns the
// block palette (normally the decoder); the import core only asks the
// two questions the filter needs.
type BlockTable interface {
	IsTransparent(id uint32) bool
	IsWater(id uint32) bool
}

// Palette maps decoder-assigned block ids back to their namespaced block
// names. Id 0 is always air.
type Palette struct {
	names []string
	index map[string]uint32
}

// NewPalette returns a palette with air pre-registered at id 0.
func NewPalette() *Palette {
	p := &Palette{index: make(map[string]uint32)}
	p.names = append(p.names, "minecraft:air")
	p.index["minecraft:air"] = AirBlock
	return p
}

// ID returns the id for name, registering it if unseen.
func (p *Palette) ID(name string) uint32 {
	if id, ok := p.index[name]; ok {
		return id
	}
	id := uint32(len(p.names))
	p.names = append(p.names, name)
	p.index[name] = id
	return id
}

// Name returns the block name for id, or "" if the id was never assigned.
func (p *Palette) Name(id uint32) string {
	if int(id) >= len(p.names) {
		return ""
	}
	return p.names[id]
}

// Len returns the number of registered names, air included.
func (p *Palette) Len() int { return len(p.names) }

// transparentNameParts are substrings of block names treated as
// see-through for the "exclude transparent" option. The authoritative
// classification lives with the block mapping table outside this module;
// this is the default used when none is supplied.
var transparentNameParts = []string{
	"air", "glass", "leaves", "barrier", "ice", "vine", "torch",
}

var waterNameParts = []string{
	"water", "bubble_column", "kelp", "seagrass",
}

// IsTransparent reports whether the block name for id matches the
// default transparent set.
func (p *Palette) IsTransparent(id uint32) bool {
	return nameMatches(p.Name(id), transparentNameParts)
}

// IsWater reports whether the block name for id is water-typed.
func (p *Palette) IsWater(id uint32) bool {
	return nameMatches(p.Name(id), waterNameParts)
}

func nameMatches(name string, parts []string) bool {
	if name == "" {
		return false
	}
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	for _, part := range parts {
		if strings.Contains(name, part) {
			return true
		}
	}
	return false
}
