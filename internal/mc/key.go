package mc

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Key returns the canonical position key "x,y,z" for a block position.
// Every stage of the pipeline that needs a map key for a position uses
// this encoding, so keys compare equal across stages.
func Key(x, y, z int32) string {
	b := make([]byte, 0, 24)
	b = strconv.AppendInt(b, int64(x), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(y), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(z), 10)
	return string(b)
}

// ParseKey decodes a canonical position key. Keys with a wrong component
// count, non-integer components or values outside int32 are rejected.
func ParseKey(key string) (x, y, z int32, err error) {
	first := strings.IndexByte(key, ',')
	if first < 0 {
		return 0, 0, 0, errors.Errorf("invalid position key %q", key)
	}
	second := strings.IndexByte(key[first+1:], ',')
	if second < 0 {
		return 0, 0, 0, errors.Errorf("invalid position key %q", key)
	}
	second += first + 1

	xs, ys, zs := key[:first], key[first+1:second], key[second+1:]
	if strings.IndexByte(zs, ',') >= 0 {
		return 0, 0, 0, errors.Errorf("invalid position key %q", key)
	}

	xi, err := strconv.ParseInt(xs, 10, 32)
	if err != nil {
		return 0, 0, 0, errors.Wrapf(err, "invalid position key %q", key)
	}
	yi, err := strconv.ParseInt(ys, 10, 32)
	if err != nil {
		return 0, 0, 0, errors.Wrapf(err, "invalid position key %q", key)
	}
	zi, err := strconv.ParseInt(zs, 10, 32)
	if err != nil {
		return 0, 0, 0, errors.Wrapf(err, "invalid position key %q", key)
	}

	return int32(xi), int32(yi), int32(zi), nil
}
