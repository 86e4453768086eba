// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

// Package bc implements the scanning half of the BatClient control
// protocol: a single-pass state machine that splits the game server's
// byte stream into literal text and control-tag events.
//
// Control markers are ESC-prefixed: "\x1b<NN" opens tag NN, "\x1b|"
// terminates the open tag's argument, "\x1b>NN" closes the open tag.
// The telnet go-ahead pair IAC GA is recognized in every state and
// swallowed; the renderer reinstates it after prompts. Everything
// else, including ESC sequences that do not exactly match a marker,
// is literal text.
//
// The scanner attaches no meaning to tag codes; that belongs to the
// consumer of its events.
package bc

import "bytes"

// Telnet bytes the protocol cares about.
const (
	IAC byte = 0xff // telnet "interpret as command"
	GA  byte = 0xf9 // telnet "go ahead", terminates server prompts
	ESC byte = 0x1b
)

// EnableMode is written to the game server once at connect time to
// switch the session into BatClient mode.
const EnableMode = "\x1bbc 1\n"

// Marker punctuation following ESC.
const (
	markerOpen  byte = '<'
	markerArg   byte = '|'
	markerClose byte = '>'
)

// Handler receives scan events. Byte slices are valid only for the
// duration of the call; handlers copy what they keep.
//
// A tag's wire layout is "\x1b<NN argument \x1b| body \x1b>NN" with
// the argument segment optional: TagText bytes delivered before
// TagArgEnd are the argument-to-be, bytes after it are the body. The
// consumer snapshots accordingly; the scanner only reports what it
// saw.
type Handler interface {
	// Text delivers literal bytes seen outside any tag.
	Text(p []byte)
	// TagOpen reports a tag-open marker and the tag's numeric code.
	TagOpen(code int)
	// TagText delivers content bytes of the open tag.
	TagText(p []byte)
	// TagArgEnd reports the argument boundary inside the open tag.
	TagArgEnd()
	// TagClose reports the close marker of the open tag.
	TagClose()
}

type scanState int

const (
	stateText scanState = iota // outside any tag
	stateBody                  // inside a tag, before any argument boundary
	stateArg                   // inside a tag, after an argument boundary
)

// markState tracks progress through a possibly incomplete marker. The
// bytes consumed so far are mirrored in pending so they can be
// replayed as literal text if the marker fails to complete, even when
// it started in an earlier chunk.
type markState int

const (
	markNone    markState = iota
	markEsc               // seen ESC
	markOpenHi            // seen ESC '<'
	markOpenLo            // seen ESC '<' digit
	markCloseHi           // seen ESC '>'
	markCloseLo           // seen ESC '>' digit
	markIAC               // seen IAC
)

// Parser is the scanning state machine. Feed drives it and never
// fails; marker fragments that straddle chunk boundaries are held in
// pending until the next chunk decides them.
type Parser struct {
	handler Handler
	state   scanState
	mark    markState
	code    int // accumulates the open marker's digits
	pending [4]byte
	n       int // occupied length of pending
}

func NewParser(h Handler) *Parser {
	return &Parser{handler: h}
}

// Feed scans one chunk to completion, invoking the handler for every
// event it contains.
func (p *Parser) Feed(chunk []byte) {
	i := 0
	for i < len(chunk) {
		c := chunk[i]
		if p.mark == markNone {
			if c != ESC && c != IAC {
				j := nextSpecial(chunk, i)
				p.emitText(chunk[i:j])
				i = j
				continue
			}
			p.push(c)
			if c == ESC {
				p.mark = markEsc
			} else {
				p.mark = markIAC
			}
			i++
			continue
		}
		if p.step(c) {
			i++
		}
	}
}

// Flush releases a marker fragment held across chunks as literal
// text. Callers invoke it at stream end so trailing bytes are not
// silently lost.
func (p *Parser) Flush() {
	p.flushPending()
}

// step advances marker recognition by one byte. It returns false when
// the byte broke the marker: the marker prefix has been replayed as
// literal text and the byte must be rescanned from markNone.
func (p *Parser) step(c byte) bool {
	switch p.mark {
	case markEsc:
		switch c {
		case markerOpen:
			p.push(c)
			p.mark = markOpenHi
			return true
		case markerClose:
			p.push(c)
			p.mark = markCloseHi
			return true
		case markerArg:
			p.reset()
			if p.state == stateText {
				// boundary with no open tag, nothing to terminate
				return true
			}
			p.state = stateArg
			p.handler.TagArgEnd()
			return true
		}
	case markOpenHi:
		if isDigit(c) {
			p.push(c)
			p.code = int(c - '0')
			p.mark = markOpenLo
			return true
		}
	case markOpenLo:
		if isDigit(c) {
			code := p.code*10 + int(c-'0')
			p.reset()
			p.state = stateBody
			p.handler.TagOpen(code)
			return true
		}
	case markCloseHi:
		if isDigit(c) {
			p.push(c)
			p.mark = markCloseLo
			return true
		}
	case markCloseLo:
		if isDigit(c) {
			// the close marker's digits are consumed, not checked:
			// the consumer renders with the code it recorded at open
			p.reset()
			if p.state == stateText {
				// close with no open tag, nothing to do
				return true
			}
			p.state = stateText
			p.handler.TagClose()
			return true
		}
	case markIAC:
		if c == GA {
			p.reset()
			return true
		}
	}
	p.flushPending()
	return false
}

func (p *Parser) push(c byte) {
	p.pending[p.n] = c
	p.n++
}

func (p *Parser) reset() {
	p.mark = markNone
	p.n = 0
}

func (p *Parser) flushPending() {
	if p.n > 0 {
		p.emitText(p.pending[:p.n])
	}
	p.reset()
}

func (p *Parser) emitText(b []byte) {
	if len(b) == 0 {
		return
	}
	if p.state == stateText {
		p.handler.Text(b)
	} else {
		p.handler.TagText(b)
	}
}

// nextSpecial returns the index of the next byte that can start a
// marker, or len(chunk) if the rest is plain.
func nextSpecial(chunk []byte, from int) int {
	rest := chunk[from:]
	e := bytes.IndexByte(rest, ESC)
	i := bytes.IndexByte(rest, IAC)
	switch {
	case e == -1 && i == -1:
		return len(chunk)
	case e == -1:
		return from + i
	case i == -1 || e < i:
		return from + e
	default:
		return from + i
	}
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
