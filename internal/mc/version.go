package mc

import "fmt"

// WorldVersion is a world's data version number as recorded in its
// metadata. 0 means the version could not be determined.
type WorldVersion int32

// UnknownVersion is reported when the save carries no readable metadata.
// An unknown version never blocks an import by itself.
const UnknownVersion WorldVersion = 0

// MinSupportedDataVersion is the oldest world data version the section
// decoder understands (1.18, the first release with flattened chunk
// roots and per-section block_states).
const MinSupportedDataVersion WorldVersion = 2844

// Supported reports whether a world of this version can be decoded.
// Unknown versions are allowed through; the decoder fails per chunk if
// the guess was wrong.
func (v WorldVersion) Supported() bool {
	return v == UnknownVersion || v >= MinSupportedDataVersion
}

func (v WorldVersion) String() string {
	if v == UnknownVersion {
		return "unknown"
	}
	return fmt.Sprintf("%d", int32(v))
}
