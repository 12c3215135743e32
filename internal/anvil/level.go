package anvil

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/oriumgames/nbt"
	"github.com/pkg/errors"

	"github.com/hytopiagg/world-editor-sub010/internal/mc"
)

type levelNBT struct {
	Data levelDataNBT `nbt:"Data"`
}

type levelDataNBT struct {
	DataVersion int32           `nbt:"DataVersion"`
	Version     levelVersionNBT `nbt:"Version"`
	LevelName   string          `nbt:"LevelName"`
}

type levelVersionNBT struct {
	ID   int32  `nbt:"Id"`
	Name string `nbt:"Name"`
}

// DetectWorldVersion reads the data version out of a level.dat payload.
// The file is normally gzip-compressed; raw NBT is accepted too.
func (d *Decoder) DetectWorldVersion(data []byte) (mc.WorldVersion, error) {
	raw := data
	if len(data) >= 2 && data[0] == 0x1F && data[1] == 0x8B {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return mc.UnknownVersion, errors.Wrap(err, "level.dat gzip")
		}
		defer gz.Close()
		raw, err = io.ReadAll(gz)
		if err != nil {
			return mc.UnknownVersion, errors.Wrap(err, "level.dat gzip")
		}
	}

	var level levelNBT
	if err := nbt.NewDecoderWithEncoding(bytes.NewReader(raw), nbt.BigEndian).Decode(&level); err != nil {
		return mc.UnknownVersion, errors.Wrap(err, "decode level.dat")
	}

	if level.Data.DataVersion != 0 {
		return mc.WorldVersion(level.Data.DataVersion), nil
	}
	if level.Data.Version.ID != 0 {
		return mc.WorldVersion(level.Data.Version.ID), nil
	}
	return mc.UnknownVersion, nil
}
