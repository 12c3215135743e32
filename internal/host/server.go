// Package host exposes the import core over a websocket, one import
// session per connection. The host side owns presentation; this side
// owns decoding and streams structured messages.
package host

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hytopiagg/world-editor-sub010/internal/anvil"
	"github.com/hytopiagg/world-editor-sub010/internal/importer"
	"github.com/hytopiagg/world-editor-sub010/internal/mc"
	"github.com/hytopiagg/world-editor-sub010/internal/protocol"
	"github.com/hytopiagg/world-editor-sub010/internal/transport"
	"github.com/hytopiagg/world-editor-sub010/internal/worldsave"
)

const writeTimeout = 10 * time.Second

// Server serves import sessions. Archive paths in requests are resolved
// under Root; requests escaping it are rejected.
type Server struct {
	root      string
	pieceSize int
	upgrader  websocket.Upgrader
}

// NewServer returns a server resolving archives under root.
func NewServer(root string) *Server {
	return &Server{
		root:      root,
		pieceSize: transport.DefaultPieceSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades the request and runs the session loop until the peer
// disconnects. Requests are served one at a time, in arrival order.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 64)

		// Writer goroutine. All session messages funnel through out so
		// progress callbacks never write to the conn concurrently.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				send(ctx, out, protocol.ErrorMsg{Type: protocol.TypeError, Error: err.Error()})
				continue
			}

			switch base.Type {
			case protocol.TypeScanWorldSize:
				var req protocol.ScanWorldSizeMsg
				if err := json.Unmarshal(msg, &req); err != nil {
					send(ctx, out, protocol.ErrorMsg{Type: protocol.TypeError, Error: err.Error()})
					continue
				}
				if err := s.scan(ctx, out, req); err != nil {
					log.Warnf("scan failed: %v", err)
					send(ctx, out, protocol.ErrorMsg{Type: protocol.TypeError, Error: err.Error()})
				}
			case protocol.TypeParseWorld:
				var req protocol.ParseWorldMsg
				if err := json.Unmarshal(msg, &req); err != nil {
					send(ctx, out, protocol.ErrorMsg{Type: protocol.TypeError, Error: err.Error()})
					continue
				}
				if err := s.parse(ctx, out, req); err != nil {
					log.Warnf("parse failed: %v", err)
					send(ctx, out, protocol.ErrorMsg{Type: protocol.TypeError, Error: err.Error()})
				}
			default:
				send(ctx, out, protocol.ErrorMsg{
					Type:  protocol.TypeError,
					Error: "unknown message type: " + base.Type,
				})
			}
		}
	}
}

func (s *Server) resolve(archive string) (string, error) {
	p := filepath.Join(s.root, archive)
	if rel, err := filepath.Rel(s.root, p); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("archive path %q outside served root", archive)
	}
	return p, nil
}

func (s *Server) scan(ctx context.Context, out chan<- []byte, req protocol.ScanWorldSizeMsg) error {
	path, err := s.resolve(req.Archive)
	if err != nil {
		return err
	}
	save, err := worldsave.Open(ctx, path)
	if err != nil {
		return err
	}
	defer save.Close()

	orch := importer.New(save, anvil.NewDecoder(), importer.WithProgress(progressRelay(ctx, out)))
	info, err := orch.ScanWorldSize(ctx)
	if err != nil {
		return err
	}

	tasks, err := save.Regions(ctx)
	if err != nil {
		return err
	}
	coords := make([]protocol.RegionCoordMsg, 0, len(tasks))
	for _, t := range tasks {
		coords = append(coords, protocol.RegionCoordMsg{X: t.Pos.X, Z: t.Pos.Z})
	}

	send(ctx, out, protocol.WorldSizeScannedMsg{
		Type:         protocol.TypeWorldSizeScanned,
		Bounds:       boundsMsg(info.Bounds),
		SizeBytes:    info.TotalBytes,
		RegionCoords: coords,
		WorldVersion: int32(info.Version),
	})
	return nil
}

func (s *Server) parse(ctx context.Context, out chan<- []byte, req protocol.ParseWorldMsg) error {
	path, err := s.resolve(req.Archive)
	if err != nil {
		return err
	}
	save, err := worldsave.Open(ctx, path)
	if err != nil {
		return err
	}
	defer save.Close()

	orch := importer.New(save, anvil.NewDecoder(), importer.WithProgress(progressRelay(ctx, out)))
	info, err := orch.ScanWorldSize(ctx)
	if err != nil {
		return err
	}
	result, err := orch.ParseWorld(ctx, req.Options)
	if err != nil {
		return err
	}

	keyed := make([]mc.KeyedBlock, 0, len(result.Blocks))
	for _, e := range result.Blocks {
		keyed = append(keyed, e.Keyed())
	}
	err = transport.Split(ctx, keyed, s.pieceSize, func(ctx context.Context, chunk transport.BlockChunk) error {
		blocks := make(map[string]uint32, len(chunk.Blocks))
		for _, blk := range chunk.Blocks {
			blocks[blk.Key] = blk.BlockID
		}
		send(ctx, out, protocol.BlockChunkMsg{
			Type:        protocol.TypeBlockChunk,
			ChunkID:     chunk.ChunkID,
			TotalChunks: chunk.TotalChunks,
			Blocks:      blocks,
		})
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	send(ctx, out, protocol.WorldParsedMsg{
		Type:        protocol.TypeWorldParsed,
		Bounds:      boundsMsg(info.Bounds),
		TotalBlocks: result.Stats.TotalBlocks,
		ProcessingStats: protocol.ProcessingStatsMsg{
			RegionsProcessed:  result.Stats.RegionsProcessed,
			RegionsWithErrors: result.Stats.RegionsWithErrors,
			TotalRegions:      result.Stats.TotalRegions,
			TotalBlocks:       result.Stats.TotalBlocks,
			SkippedChunks:     result.Stats.Skipped,
			MemoryStopped:     result.MemoryStopped,
		},
	})
	return nil
}

func progressRelay(ctx context.Context, out chan<- []byte) importer.ProgressFunc {
	return func(rep importer.ProgressReport) {
		send(ctx, out, protocol.ProgressMsg{
			Type:          protocol.TypeProgress,
			Message:       rep.Message,
			Percent:       rep.Percent,
			MemoryUsage:   rep.Memory,
			SkippedChunks: rep.Skipped,
		})
		if rep.Memory != nil {
			send(ctx, out, protocol.MemoryUpdateMsg{
				Type:  protocol.TypeMemoryUpdate,
				Used:  rep.Memory.UsedMB,
				Total: rep.Memory.TotalMB,
				Limit: rep.Memory.LimitMB,
			})
		}
	}
}

func boundsMsg(b mc.RegionBounds) protocol.RegionBoundsMsg {
	return protocol.RegionBoundsMsg{
		MinRegionX: b.MinX,
		MaxRegionX: b.MaxX,
		MinRegionZ: b.MinZ,
		MaxRegionZ: b.MaxZ,
	}
}

func send(ctx context.Context, out chan<- []byte, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal outbound message: %v", err)
		return
	}
	select {
	case <-ctx.Done():
	case out <- b:
	}
}
