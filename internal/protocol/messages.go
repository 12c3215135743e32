package protocol

import (
	"github.com/hytopiagg/world-editor-sub010/internal/importer"
	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

// ScanWorldSizeMsg asks the orchestrator to scan an archive without
// materializing blocks. Archive is a server-side path.
type ScanWorldSizeMsg struct {
	Type    string `json:"type"`
	Archive string `json:"archive"`
}

// ParseWorldMsg starts the decode phase with confirmed options.
type ParseWorldMsg struct {
	Type    string           `json:"type"`
	Archive string           `json:"archive"`
	Options mc.ImportOptions `json:"options"`
}

// ProgressMsg reports progress. Percent is monotonic per run.
type ProgressMsg struct {
	Type          string                 `json:"type"`
	Message       string                 `json:"message"`
	Percent       int                    `json:"percent"`
	MemoryUsage   *importer.MemoryStatus `json:"memoryUsage,omitempty"`
	SkippedChunks *importer.SkipCounters `json:"skippedChunks,omitempty"`
}

// RegionBoundsMsg is an inclusive rectangle on the region grid.
type RegionBoundsMsg struct {
	MinRegionX int32 `json:"minRegionX"`
	MaxRegionX int32 `json:"maxRegionX"`
	MinRegionZ int32 `json:"minRegionZ"`
	MaxRegionZ int32 `json:"maxRegionZ"`
}

// RegionCoordMsg is one region position.
type RegionCoordMsg struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

// WorldSizeScannedMsg is the scan phase's summary.
type WorldSizeScannedMsg struct {
	Type         string           `json:"type"`
	Bounds       RegionBoundsMsg  `json:"bounds"`
	SizeBytes    int64            `json:"size"`
	RegionCoords []RegionCoordMsg `json:"regionCoords"`
	WorldVersion int32            `json:"worldVersion,omitempty"`
}

// BlockChunkMsg carries one ordered piece of the block transfer. Blocks
// maps canonical position keys to block ids.
type BlockChunkMsg struct {
	Type        string            `json:"type"`
	ChunkID     uint32            `json:"chunkId"`
	TotalChunks uint32            `json:"totalChunks"`
	Blocks      map[string]uint32 `json:"blocks"`
}

// ProcessingStatsMsg summarizes a completed decode.
type ProcessingStatsMsg struct {
	RegionsProcessed  int                   `json:"regionsProcessed"`
	RegionsWithErrors int                   `json:"regionsWithErrors"`
	TotalRegions      int                   `json:"totalRegions"`
	TotalBlocks       int                   `json:"totalBlocks"`
	SkippedChunks     importer.SkipCounters `json:"skippedChunks"`
	MemoryStopped     bool                  `json:"memoryStopped,omitempty"`
}

// WorldParsedMsg ends a successful (possibly memory-stopped) run.
type WorldParsedMsg struct {
	Type            string             `json:"type"`
	Bounds          RegionBoundsMsg    `json:"bounds"`
	TotalBlocks     int                `json:"totalBlocks"`
	ProcessingStats ProcessingStatsMsg `json:"processingStats"`
}

// ErrorMsg surfaces a fatal failure. Cause is structured data for the
// host; the host renders the user-facing text.
type ErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// MemoryUpdateMsg is a standalone memory sample, in MB.
type MemoryUpdateMsg struct {
	Type  string `json:"type"`
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
	Limit uint64 `json:"limit"`
}
