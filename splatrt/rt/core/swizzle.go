package core

// Colour data lives in a fixed-width texture laid out in 16x16 Morton tiles.
const (
	ColorTextureWidth = 2048
	ColorTileSize     = 16
)

// EncodeMorton16 interleaves the low 4 bits of x and y into one byte.
func EncodeMorton16(x, y uint32) uint32 {
	t := ((y & 0xF) << 8) | (x & 0xF)
	t = (t ^ (t << 2)) & 0x3333
	t = (t ^ (t << 1)) & 0x5555
	return (t | (t >> 7)) & 0xFF
}

func DecodeMorton16(t uint32) (x, y uint32) {
	t = (t & 0xFF) | ((t & 0xFE) << 7)
	t &= 0x5555
	t = (t ^ (t >> 1)) & 0x3333
	t = (t ^ (t >> 2)) & 0x0F0F
	return t & 0xF, t >> 8
}

// SplatIndexToPixel returns the texel holding splat idx's colour.
func SplatIndexToPixel(idx int) (x, y int) {
	tx, ty := DecodeMorton16(uint32(idx))
	tile := idx >> 8
	tilesPerRow := ColorTextureWidth / ColorTileSize
	x = (tile%tilesPerRow)*ColorTileSize + int(tx)
	y = (tile/tilesPerRow)*ColorTileSize + int(ty)
	return x, y
}

// ColorTextureSize returns the texture dimensions needed for count splats.
func ColorTextureSize(count int) (width, height int) {
	width = ColorTextureWidth
	height = (count + width - 1) / width
	if height < 1 {
		height = 1
	}
	height = (height + ColorTileSize - 1) / ColorTileSize * ColorTileSize
	return width, height
}
