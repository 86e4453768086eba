// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

// Package room decodes the mapper location payloads embedded in the
// game server's control stream.
package room

import (
	"errors"
	"strings"
)

// fieldSep separates payload fields.
const fieldSep = ";;"

var (
	ErrTooFewFields = errors.New("mapper payload has too few fields")
	ErrEmptyField   = errors.New("mapper payload area or id is empty")
)

// Room is one decoded location: where the player is, which area
// contains it, and the direction of arrival. Values never change after
// construction.
type Room struct {
	Area      string
	ID        string
	Direction string
}

// Parse decodes a mapper payload (the part following the sentinel
// prefix) of the form "area;;id;;direction[;;...]". Trailing fields
// (indoor flag, descriptions, exit list) are tolerated and ignored.
// The direction may be empty; area and id may not.
func Parse(payload string) (*Room, error) {
	fields := strings.Split(payload, fieldSep)
	if len(fields) < 3 {
		return nil, ErrTooFewFields
	}
	if fields[0] == "" || fields[1] == "" {
		return nil, ErrEmptyField
	}
	return &Room{
		Area:      fields[0],
		ID:        fields[1],
		Direction: fields[2],
	}, nil
}
