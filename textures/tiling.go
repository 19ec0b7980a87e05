package textures

// TiledXY maps the i-th texel of a console tiled image to its linear coordinates.
// width is in texels (blocks for compressed formats) and pitch is the texel size in
// bytes.
func TiledXY(i, width, pitch uint32) (x, y uint32) {
	alignedWidth := (width + 31) &^ 31

	logBpp := (pitch >> 2) + ((pitch >> 1) >> (pitch >> 2))
	offB := i << logBpp
	offT := ((offB &^ 4095) >> 3) + ((offB & 1792) >> 2) + (offB & 63)
	offM := offT >> (7 + logBpp)

	macroX := (offM % (alignedWidth >> 5)) << 2
	tileX := (((offT >> (5 + logBpp)) & 2) + (offB >> 6)) & 3
	macroX = (macroX + tileX) << 3
	microX := ((((offT >> 1) &^ 15) + (offT & 15)) & ((pitch << 3) - 1)) >> logBpp

	macroY := (offM / (alignedWidth >> 5)) << 2
	tileY := ((offT >> (6 + logBpp)) & 1) + ((offB & 2048) >> 10)
	macroY = (macroY + tileY) << 3
	microY := (((offT & (((pitch << 6) - 1) &^ 31)) + ((offT & 15) << 1)) >> (3 + logBpp)) &^ 1

	return macroX + microX, macroY + microY + ((offT & 16) >> 4)
}

// swapWords reverses the bytes of every n byte word, the console stores 16 bit words of
// compressed blocks and 32 bit texels big endian.
func swapWords(data []byte, n int) []byte {
	out := make([]byte, len(data))
	for i := 0; i+n <= len(data); i += n {
		for j := 0; j < n; j++ {
			out[i+j] = data[i+n-1-j]
		}
	}
	copy(out[len(data)-len(data)%n:], data[len(data)-len(data)%n:])
	return out
}

// tileGrid gives the block geometry of one level: texels per block side, bytes per
// block, the stored grid and the visible grid.
func tileGrid(width, height int, format uint32) (s, d, w, h, visW, visH int, ok bool) {
	s, d, ok = StrideWidth(format)
	if !ok {
		return
	}
	visW, visH = width/s, height/s
	w, h = visW, visH
	if isBlockCompressed(format) {
		w, h = max(w, 32), max(h, 32)
	}
	return
}

// Untile converts one console level into linear block order. The returned image is
// visW by visH blocks of d bytes.
func Untile(data []byte, width, height int, format uint32) (out []byte, d, visW, visH int, err error) {
	_, d, w, h, visW, visH, ok := tileGrid(width, height, format)
	if !ok {
		return nil, 0, 0, 0, unsupported(format)
	}
	switch d {
	case 8, 16:
		data = swapWords(data, 2)
	case 4:
		data = swapWords(data, 4)
	}
	grid := make([]byte, w*h*d)
	for i := 0; i < w*h; i++ {
		x, y := TiledXY(uint32(i), uint32(w), uint32(d))
		if int(x) >= visW || int(y) >= visH {
			continue
		}
		if (i+1)*d > len(data) {
			return nil, 0, 0, 0, short("tiled level", (i+1)*d, len(data))
		}
		j := int(y)*w + int(x)
		copy(grid[j*d:(j+1)*d], data[i*d:(i+1)*d])
	}
	out = make([]byte, 0, visW*visH*d)
	for row := 0; row < visH; row++ {
		out = append(out, grid[row*w*d:row*w*d+visW*d]...)
	}
	return out, d, visW, visH, nil
}

// Tile is the inverse of Untile for a single level.
func Tile(linear []byte, width, height int, format uint32) ([]byte, error) {
	_, d, w, h, visW, visH, ok := tileGrid(width, height, format)
	if !ok {
		return nil, unsupported(format)
	}
	if len(linear) < visW*visH*d {
		return nil, short("linear level", visW*visH*d, len(linear))
	}
	out := make([]byte, w*h*d)
	for i := 0; i < w*h; i++ {
		x, y := TiledXY(uint32(i), uint32(w), uint32(d))
		if int(x) >= visW || int(y) >= visH {
			continue
		}
		j := int(y)*visW + int(x)
		copy(out[i*d:(i+1)*d], linear[j*d:(j+1)*d])
	}
	switch d {
	case 8, 16:
		out = swapWords(out, 2)
	case 4:
		out = swapWords(out, 4)
	}
	return out, nil
}
