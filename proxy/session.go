// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package proxy

import (
	"github.com/batproxy/batproxy/proxy/bc"
	"github.com/batproxy/batproxy/proxy/bytebuf"
	"github.com/batproxy/batproxy/proxy/logger"
	"github.com/batproxy/batproxy/proxy/room"
)

// Session is the per-connection translation state: it consumes scan
// events from the protocol parser and renders them into the output
// buffer. It performs no I/O of its own; the relay feeds it server
// bytes and drains what it renders.
//
// A Session belongs to exactly one goroutine and needs no locking.
type Session struct {
	parser  *bc.Parser
	out     *bytebuf.Buffer
	scratch *bytebuf.Buffer

	tagOpen bool
	tagCode int
	arg     string
	hasArg  bool

	location *room.Room

	logger *logger.Manager
}

func NewSession(lm *logger.Manager) *Session {
	s := &Session{
		out:     bytebuf.New(),
		scratch: bytebuf.New(),
		logger:  lm,
	}
	s.parser = bc.NewParser(s)
	return s
}

// Feed scans and dispatches one chunk of server output. Everything it
// renders accumulates in the output buffer.
func (s *Session) Feed(chunk []byte) {
	s.parser.Feed(chunk)
}

// TakeOutput returns the rendered bytes accumulated so far and clears
// the output buffer. The returned slice is valid until the next Feed.
func (s *Session) TakeOutput() []byte {
	b := s.out.Bytes()
	s.out.Clear()
	return b
}

// Close finishes the stream: the scanner releases any buffered marker
// fragment, and a still-open tag is rendered through the same path an
// implicit close takes. Callers drain TakeOutput afterwards.
func (s *Session) Close() {
	s.parser.Flush()
	if s.pendingTag() {
		s.renderCurrent()
	}
	s.tagOpen = false
}

// Location returns the last successfully decoded location, or nil when
// the player is on the overview map or nothing has been decoded yet.
func (s *Session) Location() *room.Room {
	return s.location
}

// Text implements bc.Handler: literal bytes go straight to the output.
func (s *Session) Text(p []byte) {
	s.out.Append(p)
}

// TagOpen implements bc.Handler. A tag arriving while the previous one
// still has content pending flushes the previous tag first, so the
// renderer never sees two tags at once; whatever the outer tag had
// accumulated is all it gets to render.
func (s *Session) TagOpen(code int) {
	if s.pendingTag() {
		s.renderCurrent()
	}
	s.tagOpen = true
	s.tagCode = code
}

// TagText implements bc.Handler: tag content accumulates in scratch
// until the tag resolves.
func (s *Session) TagText(p []byte) {
	s.scratch.Append(p)
}

// TagArgEnd implements bc.Handler: everything accumulated so far
// becomes the tag's argument, and body accumulation restarts clean.
func (s *Session) TagArgEnd() {
	s.arg = s.scratch.String()
	s.hasArg = true
	s.scratch.Clear()
}

// TagClose implements bc.Handler. An explicit close renders even an
// empty body; labels like [prots] still show up when the server sends
// a bare tag.
func (s *Session) TagClose() {
	if !s.tagOpen {
		// stray close with no open tag
		return
	}
	s.renderCurrent()
	s.tagOpen = false
}

// pendingTag reports whether the open tag has accumulated anything an
// implicit close would otherwise lose. An open tag with neither body
// nor argument is superseded silently.
func (s *Session) pendingTag() bool {
	return s.tagOpen && (s.scratch.Len() > 0 || s.hasArg)
}

// renderCurrent renders the open tag's accumulated content and resets
// the per-tag state.
func (s *Session) renderCurrent() {
	s.render(s.tagCode, s.arg, s.hasArg, s.scratch.Bytes())
	s.scratch.Clear()
	s.arg = ""
	s.hasArg = false
}
