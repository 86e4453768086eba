// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package room

import (
	"testing"

	"github.com/go-test/deep"
)

func TestParse(t *testing.T) {
	cases := []struct {
		payload string
		want    *Room
	}{
		{
			"laenor;;$apr1$dz1;;south",
			&Room{Area: "laenor", ID: "$apr1$dz1", Direction: "south"},
		},
		{
			// full payload with indoor flag, descs and exit list
			"dortlewall;;room4711;;east;;1;;A cobbled street;;The street winds north.;;n,e,s",
			&Room{Area: "dortlewall", ID: "room4711", Direction: "east"},
		},
		{
			// teleports arrive without a direction
			"shadowkeep;;entrance;;",
			&Room{Area: "shadowkeep", ID: "entrance", Direction: ""},
		},
	}
	for _, c := range cases {
		got, err := Parse(c.payload)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", c.payload, err)
			continue
		}
		if diff := deep.Equal(got, c.want); diff != nil {
			t.Errorf("Parse(%q): %v", c.payload, diff)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		payload string
		want    error
	}{
		{"", ErrTooFewFields},
		{"laenor", ErrTooFewFields},
		{"laenor;;room1", ErrTooFewFields},
		{";;room1;;north", ErrEmptyField},
		{"laenor;;;;north", ErrEmptyField},
	}
	for _, c := range cases {
		r, err := Parse(c.payload)
		if err != c.want {
			t.Errorf("Parse(%q) error = %v, want %v", c.payload, err, c.want)
		}
		if r != nil {
			t.Errorf("Parse(%q) returned a room alongside the error", c.payload)
		}
	}
}
