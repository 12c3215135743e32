package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hytopiagg/world-editor-sub010/internal/anvil"
	"github.com/hytopiagg/world-editor-sub010/internal/catalog"
	"github.com/hytopiagg/world-editor-sub010/internal/importer"
	"github.com/hytopiagg/world-editor-sub010/internal/mc"
	"github.com/hytopiagg/world-editor-sub010/internal/snapshot"
	"github.com/hytopiagg/world-editor-sub010/internal/spatial"
	"github.com/hytopiagg/world-editor-sub010/internal/transport"
	"github.com/hytopiagg/world-editor-sub010/internal/worldsave"
)

var cmdImport = &cobra.Command{
	Use:   "import [flags] WORLD",
	Short: "Import a world save into a spatial block index",
	Long: `
The "import" command decodes a world save, filters blocks by the configured
bounds, and builds a spatial hash index from the survivors. With --store the
combined blocks are also persisted as a snapshot and the run is recorded in
the catalog database next to the store.

EXIT STATUS
===========

Exit status is 0 if the command was successful.
Exit status is 1 if there was a fatal error (no index built).
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunImport(cmd.Context(), args[0], importOptions)
	},
}

// ImportCmdOptions bundles all options for the import command.
type ImportCmdOptions struct {
	OptionsFile string
	Store       string
	MaxRegions  int
	MinY        int
	MaxY        int
	KeepWater   bool
}

var importOptions ImportCmdOptions

func init() {
	cmdRoot.AddCommand(cmdImport)

	f := cmdImport.Flags()
	f.StringVar(&importOptions.OptionsFile, "options", "", "YAML file with import options, overriding the defaults")
	f.StringVar(&importOptions.Store, "store", "", "snapshot store directory; when set the result is persisted")
	f.IntVar(&importOptions.MaxRegions, "max-regions", 0, "override the region cap (0 keeps the configured value)")
	f.IntVar(&importOptions.MinY, "min-y", 0, "override the lower Y bound (0 keeps the configured value)")
	f.IntVar(&importOptions.MaxY, "max-y", 0, "override the upper Y bound (0 keeps the configured value)")
	f.BoolVar(&importOptions.KeepWater, "keep-water", false, "keep water blocks even when the options exclude them")
}

func RunImport(ctx context.Context, path string, cmdOpts ImportCmdOptions) error {
	opts, err := loadImportOptions(cmdOpts)
	if err != nil {
		return err
	}

	started := time.Now()

	save, err := worldsave.Open(ctx, path)
	if err != nil {
		return err
	}
	defer save.Close()

	orch := importer.New(save, anvil.NewDecoder(), importer.WithProgress(logProgress))
	result, err := orch.ParseWorld(ctx, opts)
	if err != nil {
		return err
	}
	if result.MemoryStopped {
		log.Warn("import stopped early at the memory limit, results are partial")
	}

	blocks, err := combine(ctx, result.Blocks)
	if err != nil {
		return err
	}

	index, stats := spatial.Build(blocks)
	log.WithFields(log.Fields{
		"blocks": stats.ValidBlocks,
		"chunks": stats.ChunksInIndex,
		"took":   stats.ProcessTime,
	}).Info("spatial index built")

	if cmdOpts.Store != "" {
		if err := persist(ctx, cmdOpts.Store, save.Name(), blocks, result, time.Since(started)); err != nil {
			return err
		}
	}

	printStats(result, index.Len())
	return nil
}

func loadImportOptions(cmdOpts ImportCmdOptions) (mc.ImportOptions, error) {
	opts := mc.DefaultImportOptions()
	if cmdOpts.OptionsFile != "" {
		var err error
		opts, err = mc.LoadOptions(cmdOpts.OptionsFile)
		if err != nil {
			return opts, err
		}
	}
	if cmdOpts.MaxRegions > 0 {
		opts.MaxRegions = uint32(cmdOpts.MaxRegions)
	}
	if cmdOpts.MinY != 0 {
		opts.MinY = int32(cmdOpts.MinY)
	}
	if cmdOpts.MaxY != 0 {
		opts.MaxY = int32(cmdOpts.MaxY)
	}
	if cmdOpts.KeepWater {
		opts.ExcludeWaterBlocks = false
	}
	return opts, opts.Validate()
}

// combine pushes the decoded blocks through the chunked transfer path,
// the same route a remote host takes, so ordering and dedup semantics
// are identical in-process and over the wire.
func combine(ctx context.Context, entries []mc.BlockEntry) ([]mc.KeyedBlock, error) {
	keyed := make([]mc.KeyedBlock, 0, len(entries))
	for _, e := range entries {
		keyed = append(keyed, e.Keyed())
	}

	re := transport.NewReassembler(transport.DefaultMergeBatch, nil)
	err := transport.Split(ctx, keyed, transport.DefaultPieceSize, func(ctx context.Context, chunk transport.BlockChunk) error {
		return re.Add(ctx, chunk)
	})
	if err != nil {
		return nil, err
	}
	acc, err := re.Finish()
	if err != nil {
		return nil, err
	}
	return acc.Blocks(), nil
}

func persist(ctx context.Context, storeDir, world string, blocks []mc.KeyedBlock, result *importer.ParseResult, took time.Duration) error {
	store, err := snapshot.NewStore(storeDir)
	if err != nil {
		return err
	}
	snapID, err := store.Save(ctx, world, blocks)
	if err != nil {
		return err
	}

	cat, err := catalog.Open(ctx, filepath.Join(storeDir, "catalog.db"))
	if err != nil {
		return err
	}
	defer cat.Close()
	runID, err := cat.RecordRun(ctx, catalog.Run{
		World:      world,
		SnapshotID: snapID,
		Blocks:     len(blocks),
		Regions:    result.Stats.RegionsProcessed,
		Duration:   took,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"snapshot": snapID[:8], "run": runID}).Info("import recorded")
	return nil
}

func printStats(result *importer.ParseResult, indexed int) {
	s := result.Stats
	fmt.Printf("regions:   %d processed, %d with errors, %d total\n",
		s.RegionsProcessed, s.RegionsWithErrors, s.TotalRegions)
	fmt.Printf("blocks:    %d decoded, %d indexed\n", s.TotalBlocks, indexed)
	fmt.Printf("skipped:   %d by Y bounds, %d by XZ bounds, %d regions out of bounds\n",
		s.Skipped.YBounds, s.Skipped.XZBounds, s.Skipped.RegionBounds)
	if result.MemoryStopped {
		fmt.Println("note:      stopped early at the memory limit")
	}
}
