// Package protocol defines the JSON messages exchanged between an
// import host and the orchestrator. The shapes mirror the import core's
// types; the host owns all user-facing presentation of them.
package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Message type discriminators.
const (
	// Host -> orchestrator.
	TypeScanWorldSize = "scanWorldSize"
	TypeParseWorld    = "parseWorld"

	// Orchestrator -> host.
	TypeProgress         = "progress"
	TypeWorldSizeScanned = "worldSizeScanned"
	TypeBlockChunk       = "blockChunk"
	TypeWorldParsed      = "worldParsed"
	TypeError            = "error"
	TypeMemoryUpdate     = "memoryUpdate"
)

// BaseMsg is the envelope every message shares.
type BaseMsg struct {
	Type string `json:"type"`
}

// DecodeBase extracts the type discriminator for dispatch.
func DecodeBase(raw []byte) (BaseMsg, error) {
	var base BaseMsg
	if err := json.Unmarshal(raw, &base); err != nil {
		return BaseMsg{}, errors.Wrap(err, "decode message envelope")
	}
	if base.Type == "" {
		return BaseMsg{}, errors.New("message has no type")
	}
	return base, nil
}
