package adpcm

// Decode expands a code stream into interleaved 16-bit samples. Every call
// starts from fresh predictor state. Trailing bytes that cannot form a whole
// unit are ignored; Layout.DecodeResidue reports how many.
func Decode(codes []byte, channels int) ([]int16, error) {
	layout, err := LayoutFor(channels)
	if err != nil {
		return nil, err
	}

	out := make([]int16, layout.DecodedLen(len(codes)))
	switch layout {
	case Mono:
		decodeMono(out, codes)
	case Stereo:
		decodeStereo(out, codes)
	case Quad:
		decodeQuad(out, codes)
	}

	return out, nil
}

// Encode compresses interleaved 16-bit samples into a code stream. Every call
// starts from fresh predictor state. Trailing samples that cannot fill a
// whole unit are dropped; Layout.EncodeResidue reports how many.
func Encode(samples []int16, channels int) ([]byte, error) {
	layout, err := LayoutFor(channels)
	if err != nil {
		return nil, err
	}

	out := make([]byte, layout.EncodedLen(len(samples)))
	switch layout {
	case Mono:
		encodeMono(out, samples)
	case Stereo:
		encodeStereo(out, samples)
	case Quad:
		encodeQuad(out, samples)
	}

	return out, nil
}
