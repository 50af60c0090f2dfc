package layout

// Rescale maps normalized boxes into the pixel space of a width x height
// page. The input slice is left untouched.
func Rescale(width, height int, boxes []NormalizedBox) []PixelBox {
	wScale := float64(width) / Scale
	hScale := float64(height) / Scale

	out := make([]PixelBox, len(boxes))
	for i, b := range boxes {
		out[i] = PixelBox{b[0] * wScale, b[1] * hScale, b[2] * wScale, b[3] * hScale}
	}
	return out
}

// Normalize is the inverse of Rescale. A zero width or height maps the
// corresponding coordinates to 0.
func Normalize(width, height int, boxes []PixelBox) []NormalizedBox {
	var wScale, hScale float64
	if width > 0 {
		wScale = Scale / float64(width)
	}
	if height > 0 {
		hScale = Scale / float64(height)
	}

	out := make([]NormalizedBox, len(boxes))
	for i, b := range boxes {
		out[i] = NormalizedBox{b[0] * wScale, b[1] * hScale, b[2] * wScale, b[3] * hScale}
	}
	return out
}
