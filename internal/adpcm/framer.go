package adpcm

// Mono: low nibble holds the earlier sample.
func decodeMono(dst []int16, src []byte) {
	var st State
	for i, b := range src {
		dst[i*2+0] = DecodeSample(b&codeMask, &st)
		dst[i*2+1] = DecodeSample(b>>4, &st)
	}
}

// Stereo: one (L, R) frame per byte, left in the low nibble.
func decodeStereo(dst []int16, src []byte) {
	var st [2]State
	for i, b := range src {
		dst[i*2+0] = DecodeSample(b&codeMask, &st[chLeft])
		dst[i*2+1] = DecodeSample(b>>4, &st[chRight])
	}
}

// Quad: state runs across block boundaries. A trailing block that does not
// reach its second half is skipped.
func decodeQuad(dst []int16, src []byte) {
	var st [4]State
	for block := 0; block+QuadHalfBlock < len(src); block += QuadBlockSize {
		groups := min(len(src)-block, QuadBlockSize) - QuadHalfBlock
		base := block * 2

		for j := 0; j < groups; j++ {
			front := src[block+j]
			back := src[block+QuadHalfBlock+j]
			idx := base + j*4

			dst[idx+chLeft] = DecodeSample(front&codeMask, &st[chLeft])
			dst[idx+chRight] = DecodeSample(front>>4, &st[chRight])
			dst[idx+chCenter] = DecodeSample(back&codeMask, &st[chCenter])
			dst[idx+chLFE] = DecodeSample(back>>4, &st[chLFE])
		}
	}
}

func encodeMono(dst []byte, src []int16) {
	var st State
	for i := range dst {
		lo := EncodeSample(src[i*2+0], &st)
		hi := EncodeSample(src[i*2+1], &st)
		dst[i] = hi<<4 | lo
	}
}

func encodeStereo(dst []byte, src []int16) {
	var st [2]State
	for i := range dst {
		left := EncodeSample(src[i*2+0], &st[chLeft])
		right := EncodeSample(src[i*2+1], &st[chRight])
		dst[i] = right<<4 | left
	}
}

// dst must be zeroed; the unused tail of a trailing block's first half is
// left as padding.
func encodeQuad(dst []byte, src []int16) {
	var st [4]State
	groups := len(src) / 4
	for g := 0; g < groups; g++ {
		block := (g / QuadHalfBlock) * QuadBlockSize
		j := g % QuadHalfBlock
		idx := g * 4

		left := EncodeSample(src[idx+chLeft], &st[chLeft])
		right := EncodeSample(src[idx+chRight], &st[chRight])
		center := EncodeSample(src[idx+chCenter], &st[chCenter])
		lfe := EncodeSample(src[idx+chLFE], &st[chLFE])

		dst[block+j] = right<<4 | left
		dst[block+QuadHalfBlock+j] = lfe<<4 | center
	}
}
