package adpcm

import "errors"

var (
	// ErrUnsupportedChannelLayout is returned for channel counts other than 1, 2 and 4.
	ErrUnsupportedChannelLayout = errors.New("adpcm: unsupported channel layout")
)
