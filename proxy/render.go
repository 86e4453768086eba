// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package proxy

import (
	"strconv"
	"strings"

	"github.com/batproxy/batproxy/proxy/bc"
	"github.com/batproxy/batproxy/proxy/room"
	"github.com/batproxy/batproxy/proxy/xterm"
)

// TagKind classifies wire codes into the rendering families the
// protocol defines.
type TagKind int

const (
	KindConnStatus  TagKind = iota // connection success/failure
	KindMessage                    // typed message channel
	KindClearScreen                // client should wipe its window
	KindColorFg                    // 24-bit foreground color
	KindColorBg                    // 24-bit background color
	KindStyle                      // bold/italic/underline/blink
	KindLink                       // in-game link
	KindTelemetry                  // machine-readable state, not prose
	KindProts                      // active protection spells
	KindTarget                     // target health
	KindMapper                     // location updates
	KindUnknown                    // anything not in the table
)

// classify maps a wire code to its rendering family.
func classify(code int) TagKind {
	switch code {
	case 5, 6:
		return KindConnStatus
	case 10:
		return KindMessage
	case 11:
		return KindClearScreen
	case 20:
		return KindColorFg
	case 21:
		return KindColorBg
	case 22, 23, 24, 25:
		return KindStyle
	case 31:
		return KindLink
	case 40, 41, 42, 50, 51, 52, 53, 54, 60:
		return KindTelemetry
	case 64:
		return KindProts
	case 70:
		return KindTarget
	case 99:
		return KindMapper
	default:
		return KindUnknown
	}
}

// message argument values with dedicated handling
const (
	argPrompt     = "spec_prompt"
	argMapSupport = "spec_map"
	noMapSupport  = "NoMapSupport"
)

// mapper body sentinels
const (
	mapperPrefix   = "BAT_MAPPER;;"
	mapperRealmMap = "BAT_MAPPER;;REALM_MAP"
)

// SGR fragments for the 256-color attributes
const (
	sgrForeground = "\x1b[38;5;"
	sgrBackground = "\x1b[48;5;"
	sgrReset      = "\x1b[0m"
)

// render appends the representation of one closed tag to the output
// buffer. Apart from the location bookkeeping of mapper tags, the
// result is a pure function of (code, argument, body).
func (s *Session) render(code int, arg string, hasArg bool, body []byte) {
	switch classify(code) {
	case KindConnStatus, KindClearScreen, KindTelemetry:
		// machine-facing state; a terminal has nothing to show for it
	case KindMessage:
		s.renderMessage(arg, hasArg, body)
	case KindColorFg:
		s.renderColor(sgrForeground, arg, hasArg, body)
	case KindColorBg:
		s.renderColor(sgrBackground, arg, hasArg, body)
	case KindStyle, KindLink:
		// not translated to attributes, the text still flows through
		s.out.Append(body)
	case KindProts:
		s.renderLabeled("[prots]", body)
	case KindTarget:
		s.renderLabeled("[target]", body)
	case KindMapper:
		s.renderMapper(body)
	case KindUnknown:
		s.logger.Debug("protocol", "unknown tag", strconv.Itoa(code))
		s.out.AppendString("[unknown tag ")
		s.out.AppendString(strconv.Itoa(code))
		s.out.AppendString("]")
		s.out.Append(body)
		s.out.AppendByte('\n')
	}
}

// renderMessage handles the typed message channel (code 10). Prompts
// get the telnet go-ahead restored after them; the negative map-support
// reply is noise and vanishes; other typed messages carry their type as
// a label; untyped ones pass through bare.
func (s *Session) renderMessage(arg string, hasArg bool, body []byte) {
	if hasArg {
		switch arg {
		case argPrompt:
			s.out.Append(body)
			s.out.AppendByte(bc.IAC)
			s.out.AppendByte(bc.GA)
			return
		case argMapSupport:
			if string(body) == noMapSupport {
				return
			}
		default:
			s.out.AppendString(arg)
			s.out.AppendString(": ")
		}
	}
	s.out.Append(body)
}

// renderColor wraps the body in a 256-color SGR attribute chosen by
// the 24-bit color argument. Without an argument there is no color to
// set and the tag renders nothing at all.
func (s *Session) renderColor(sgr string, arg string, hasArg bool, body []byte) {
	if !hasArg {
		return
	}
	index := xterm.FromRGB(parseHexColor(arg))
	s.out.AppendString(sgr)
	s.out.AppendString(strconv.Itoa(int(index)))
	s.out.AppendByte('m')
	s.out.Append(body)
	s.out.AppendString(sgrReset)
}

func (s *Session) renderLabeled(label string, body []byte) {
	s.out.AppendString(label)
	s.out.Append(body)
	s.out.AppendByte('\n')
}

// renderMapper narrates location changes. Bodies without the mapper
// sentinel render nothing.
func (s *Session) renderMapper(body []byte) {
	text := string(body)
	if !strings.HasPrefix(text, mapperPrefix) {
		return
	}

	if text == mapperRealmMap {
		area := "(unknown)"
		if s.location != nil {
			area = s.location.Area
		}
		s.out.AppendString("Exited to map from ")
		s.out.AppendString(area)
		s.out.AppendString(".\n")
		s.location = nil
		return
	}

	next, err := room.Parse(text[len(mapperPrefix):])
	if err != nil {
		// keep the old location; a later payload will resynchronize
		s.logger.Warning("protocol", "undecodable mapper payload", err.Error())
		return
	}
	if s.location == nil || s.location.Area != next.Area {
		s.out.AppendString("Entered area ")
		s.out.AppendString(next.Area)
		s.out.AppendString(" with direction ")
		s.out.AppendString(next.Direction)
		s.out.AppendByte('\n')
	} else {
		s.out.AppendString("Moved (")
		s.out.AppendString(s.location.ID)
		s.out.AppendString(") --")
		s.out.AppendString(next.Direction)
		s.out.AppendString("-> (")
		s.out.AppendString(next.ID)
		s.out.AppendString(")\n")
	}
	s.location = next
}

// parseHexColor reads up to six leading hex digits, best-effort: a
// malformed argument yields whatever prefix parsed, possibly zero.
func parseHexColor(arg string) uint32 {
	var rgb uint32
	for i := 0; i < len(arg) && i < 6; i++ {
		d := hexDigit(arg[i])
		if d < 0 {
			break
		}
		rgb = rgb<<4 | uint32(d)
	}
	return rgb
}

func hexDigit(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}
