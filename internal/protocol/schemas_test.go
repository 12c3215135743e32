package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hytopiagg/world-editor-sub010/internal/importer"
	"github.com/hytopiagg/world-editor-sub010/internal/mc"
	"github.com/hytopiagg/world-editor-sub010/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", name))
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func validate(t *testing.T, s *jsonschema.Schema, msg any) {
	t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate %s: %v", raw, err)
	}
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate(t, compile(t, "scan_world_size.schema.json"), protocol.ScanWorldSizeMsg{
		Type:    protocol.TypeScanWorldSize,
		Archive: "/saves/world.zip",
	})

	validate(t, compile(t, "parse_world.schema.json"), protocol.ParseWorldMsg{
		Type:    protocol.TypeParseWorld,
		Archive: "/saves/world.zip",
		Options: mc.DefaultImportOptions(),
	})

	validate(t, compile(t, "progress.schema.json"), protocol.ProgressMsg{
		Type:    protocol.TypeProgress,
		Message: "Processed region 3/10",
		Percent: 34,
		MemoryUsage: &importer.MemoryStatus{
			UsedMB: 120, TotalMB: 512, LimitMB: 1000,
		},
		SkippedChunks: &importer.SkipCounters{YBounds: 3, XZBounds: 1},
	})

	validate(t, compile(t, "world_size_scanned.schema.json"), protocol.WorldSizeScannedMsg{
		Type: protocol.TypeWorldSizeScanned,
		Bounds: protocol.RegionBoundsMsg{
			MinRegionX: -2, MaxRegionX: 3, MinRegionZ: -1, MaxRegionZ: 1,
		},
		SizeBytes:    1 << 20,
		RegionCoords: []protocol.RegionCoordMsg{{X: 0, Z: 0}, {X: -2, Z: 1}},
		WorldVersion: 3465,
	})

	validate(t, compile(t, "block_chunk.schema.json"), protocol.BlockChunkMsg{
		Type:        protocol.TypeBlockChunk,
		ChunkID:     1,
		TotalChunks: 2,
		Blocks: map[string]uint32{
			"0,64,0":     3,
			"-12,10,150": 7,
		},
	})

	validate(t, compile(t, "world_parsed.schema.json"), protocol.WorldParsedMsg{
		Type:        protocol.TypeWorldParsed,
		Bounds:      protocol.RegionBoundsMsg{MinRegionX: 0, MaxRegionX: 0, MinRegionZ: 0, MaxRegionZ: 0},
		TotalBlocks: 42,
		ProcessingStats: protocol.ProcessingStatsMsg{
			RegionsProcessed:  2,
			RegionsWithErrors: 1,
			TotalRegions:      3,
			TotalBlocks:       42,
		},
	})

	validate(t, compile(t, "error.schema.json"), protocol.ErrorMsg{
		Type:  protocol.TypeError,
		Error: "no region files in world",
	})

	validate(t, compile(t, "memory_update.schema.json"), protocol.MemoryUpdateMsg{
		Type: protocol.TypeMemoryUpdate,
		Used: 100, Total: 512, Limit: 1000,
	})
}

func TestSchemas_RejectBadMessages(t *testing.T) {
	progress := compile(t, "progress.schema.json")
	var v any
	_ = json.Unmarshal([]byte(`{"type":"progress","message":"x","percent":101}`), &v)
	if err := progress.Validate(v); err == nil {
		t.Error("percent over 100 accepted")
	}

	chunk := compile(t, "block_chunk.schema.json")
	_ = json.Unmarshal([]byte(`{"type":"blockChunk","chunkId":0,"totalChunks":1,"blocks":{}}`), &v)
	if err := chunk.Validate(v); err == nil {
		t.Error("zero chunkId accepted")
	}
	_ = json.Unmarshal([]byte(`{"type":"blockChunk","chunkId":1,"totalChunks":1,"blocks":{"not a key":1}}`), &v)
	if err := chunk.Validate(v); err == nil {
		t.Error("malformed position key accepted")
	}
}

func TestDecodeBase(t *testing.T) {
	base, err := protocol.DecodeBase([]byte(`{"type":"parseWorld","archive":"w"}`))
	if err != nil {
		t.Fatal(err)
	}
	if base.Type != protocol.TypeParseWorld {
		t.Fatalf("type = %q", base.Type)
	}
	if _, err := protocol.DecodeBase([]byte(`{}`)); err == nil {
		t.Error("typeless message accepted")
	}
	if _, err := protocol.DecodeBase([]byte(`garbage`)); err == nil {
		t.Error("non-JSON accepted")
	}
}
