package mesh

import "math"

// Hex space constants for odd-q offset tiles.
var (
	HexWidth  = math.Sqrt(3)
	HexHeight = 1.5
)

// TileArea is the hex-space area covered by one tile.
func TileArea() float64 { return HexWidth * HexHeight }

// TileCenter projects tile (x, y) into hex space. Odd columns sit half a
// row lower.
func TileCenter(x, y int) (float64, float64) {
	hx := float64(x) * HexWidth
	hy := float64(y) * HexHeight
	if x&1 == 1 {
		hy += HexHeight / 2
	}
	return hx, hy
}

// WorldExtent returns the hex-space wrap width and height of a tile grid.
func WorldExtent(width, height int) (float64, float64) {
	return float64(width) * HexWidth, float64(height) * HexHeight
}

// odd-q neighbor offsets indexed by column parity.
var oddqOffsets = [2][6][2]int{
	{{0, -1}, {0, 1}, {-1, -1}, {-1, 0}, {1, -1}, {1, 0}},
	{{0, -1}, {0, 1}, {-1, 0}, {-1, 1}, {1, 0}, {1, 1}},
}

// ForEachTileNeighbor calls fn for every hex neighbor of tile (x, y). x
// wraps; y is clipped.
func ForEachTileNeighbor(x, y, width, height int, fn func(nx, ny int)) {
	for _, o := range oddqOffsets[x&1] {
		nx := x + o[0]
		ny := y + o[1]
		if ny < 0 || ny >= height {
			continue
		}
		if nx < 0 {
			nx += width
		} else if nx >= width {
			nx -= width
		}
		if nx == x && ny == y {
			continue
		}
		fn(nx, ny)
	}
}

// ScaledCount applies the size-aware scaling rule shared by the mesh and the
// plate graph: base·(area/referenceArea)^power, rounded and floored at 2.
func ScaledCount(base int, width, height int, referenceArea, power float64) int {
	scale := 1.0
	if referenceArea > 0 && power != 0 {
		scale = math.Pow(float64(width*height)/referenceArea, power)
	}
	n := int(math.Round(float64(base) * scale))
	if n < 2 {
		n = 2
	}
	return n
}
