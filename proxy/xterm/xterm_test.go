// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package xterm

import "testing"

func TestFromRGBExactMatches(t *testing.T) {
	cases := []struct {
		rgb  uint32
		want uint8
	}{
		{0x000000, 16},  // cube origin
		{0xffffff, 231}, // cube corner
		{0xff0000, 196}, // pure red: 16 + 36*5
		{0x00ff00, 46},  // pure green: 16 + 6*5
		{0x0000ff, 21},  // pure blue: 16 + 5
		{0x5f87af, 67},  // mid-cube level triple (95,135,175)
		{0x080808, 232}, // ramp bottom
		{0xeeeeee, 255}, // ramp top
		{0x808080, 244}, // 128 sits exactly on ramp level 8+10*12
	}
	for _, c := range cases {
		if got := FromRGB(c.rgb); got != c.want {
			t.Errorf("FromRGB(%06x) = %d, want %d", c.rgb, got, c.want)
		}
	}
}

func TestFromRGBNearest(t *testing.T) {
	cases := []struct {
		rgb  uint32
		want uint8
	}{
		{0x010101, 16},  // closer to cube black than to ramp gray 8
		{0xfefefe, 231}, // closer to cube white than to ramp gray 238
		{0xfe0101, 196}, // almost-red snaps to red
		{0x303030, 236}, // 48 is nearest ramp level 48 (8+10*4)
	}
	for _, c := range cases {
		if got := FromRGB(c.rgb); got != c.want {
			t.Errorf("FromRGB(%06x) = %d, want %d", c.rgb, got, c.want)
		}
	}
}

func TestFromRGBDeterministic(t *testing.T) {
	first := FromRGB(0xff0000)
	for i := 0; i < 100; i++ {
		if got := FromRGB(0xff0000); got != first {
			t.Fatalf("FromRGB not stable: %d then %d", first, got)
		}
	}
}

// Every palette entry must approximate to itself.
func TestRoundTrip(t *testing.T) {
	for index := 16; index <= 255; index++ {
		rgb, ok := RGB(uint8(index))
		if !ok {
			t.Fatalf("RGB(%d) unexpectedly not defined", index)
		}
		if got := FromRGB(rgb); got != uint8(index) {
			t.Errorf("index %d (%06x) approximated to %d", index, rgb, got)
		}
	}
}

func TestSystemColorsExcluded(t *testing.T) {
	for index := 0; index < 16; index++ {
		if _, ok := RGB(uint8(index)); ok {
			t.Errorf("system color %d should have no canonical RGB", index)
		}
	}
}
