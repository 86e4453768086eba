// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

// Package xterm approximates 24-bit RGB colors with the xterm
// 256-color palette.
//
// Only the 6x6x6 color cube (indices 16-231) and the grayscale ramp
// (232-255) participate in the approximation. The 16 system colors are
// excluded: terminals redefine them freely, so their real RGB values
// are not stable targets.
package xterm

// cubeLevels are the channel intensities of the 6x6x6 cube.
var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

// palette holds the RGB values of indices 16 through 255.
var palette [240][3]uint8

func init() {
	for i := 0; i < 216; i++ {
		palette[i] = [3]uint8{cubeLevels[i/36], cubeLevels[i/6%6], cubeLevels[i%6]}
	}
	for i := 0; i < 24; i++ {
		level := uint8(8 + 10*i)
		palette[216+i] = [3]uint8{level, level, level}
	}
}

// FromRGB returns the palette index whose color is nearest to the
// given 24-bit RGB value by squared channel distance. Ties resolve to
// the lowest index, so the mapping is deterministic.
func FromRGB(rgb uint32) uint8 {
	r := int(rgb >> 16 & 0xff)
	g := int(rgb >> 8 & 0xff)
	b := int(rgb & 0xff)

	best := 0
	bestDist := int(^uint(0) >> 1)
	for i, c := range palette {
		dr := r - int(c[0])
		dg := g - int(c[1])
		db := b - int(c[2])
		dist := dr*dr + dg*dg + db*db
		if dist < bestDist {
			best, bestDist = i, dist
			if dist == 0 {
				break
			}
		}
	}
	return uint8(16 + best)
}

// RGB returns the canonical 24-bit color of a palette index, or false
// for the 16 system colors.
func RGB(index uint8) (uint32, bool) {
	if index < 16 {
		return 0, false
	}
	c := palette[int(index)-16]
	return uint32(c[0])<<16 | uint32(c[1])<<8 | uint32(c[2]), true
}
