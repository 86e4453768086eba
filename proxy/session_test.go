// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package proxy

import (
	"testing"

	"github.com/batproxy/batproxy/proxy/logger"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	lm, err := logger.NewManager(nil)
	if err != nil {
		t.Fatalf("logger manager: %v", err)
	}
	return NewSession(lm)
}

// translate runs one complete stream through a fresh session.
func translate(t *testing.T, input string) string {
	t.Helper()
	s := newTestSession(t)
	s.Feed([]byte(input))
	s.Close()
	return string(s.TakeOutput())
}

func expectTranslation(t *testing.T, input, want string) {
	t.Helper()
	if got := translate(t, input); got != want {
		t.Errorf("translating %q:\n got  %q\n want %q", input, got, want)
	}
}

func TestLiteralPassThrough(t *testing.T) {
	inputs := []string{
		"You have a strange feeling for a moment, then it passes.\r\n",
		"the game's own ansi: \x1b[1;32mgreen\x1b[0m\r\n",
		"half a marker \x1b<9 stays literal",
	}
	for _, input := range inputs {
		expectTranslation(t, input, input)
	}
}

func TestGoAheadSwallowedOutsideTags(t *testing.T) {
	expectTranslation(t, "prompt>\xff\xf9rest", "prompt>rest")
}

func TestPromptRestoresGoAhead(t *testing.T) {
	expectTranslation(t,
		"\x1b<10spec_prompt\x1b|Hp:100 Sp:50 >\x1b>10",
		"Hp:100 Sp:50 >\xff\xf9")
}

func TestMapSupportReply(t *testing.T) {
	// the negative reply disappears
	expectTranslation(t, "\x1b<10spec_map\x1b|NoMapSupport\x1b>10", "")
	// any other payload on that channel flows through unlabeled
	expectTranslation(t, "\x1b<10spec_map\x1b|MapSupport v2\x1b>10", "MapSupport v2")
}

func TestTypedMessageLabeled(t *testing.T) {
	expectTranslation(t,
		"\x1b<10chan_newbie\x1b|Foo {newbie}: hello\x1b>10",
		"chan_newbie: Foo {newbie}: hello")
}

func TestUntypedMessagePassesBare(t *testing.T) {
	expectTranslation(t, "\x1b<10just text\x1b>10", "just text")
}

func TestForegroundColor(t *testing.T) {
	expectTranslation(t,
		"\x1b<20ff0000\x1b|alarm!\x1b>20",
		"\x1b[38;5;196malarm!\x1b[0m")
}

func TestBackgroundColor(t *testing.T) {
	expectTranslation(t,
		"\x1b<21ff0000\x1b|alarm!\x1b>21",
		"\x1b[48;5;196malarm!\x1b[0m")
}

func TestColorRenderingIsStable(t *testing.T) {
	input := "\x1b<20ff0000\x1b|red\x1b>20"
	first := translate(t, input)
	for i := 0; i < 10; i++ {
		if got := translate(t, input); got != first {
			t.Fatalf("color render unstable: %q then %q", first, got)
		}
	}
}

func TestColorMalformedHex(t *testing.T) {
	// no parseable digits: best effort lands on zero (black)
	expectTranslation(t,
		"\x1b<20zzzzzz\x1b|dim\x1b>20",
		"\x1b[38;5;16mdim\x1b[0m")
	// a valid prefix parses as far as it goes: "ff00" is green
	expectTranslation(t,
		"\x1b<20ff00zz\x1b|odd\x1b>20",
		"\x1b[38;5;46modd\x1b[0m")
}

func TestColorWithoutArgumentDropsBody(t *testing.T) {
	expectTranslation(t, "\x1b<20no argument here\x1b>20", "")
}

func TestStyleAndLinkPassBody(t *testing.T) {
	for _, code := range []string{"22", "23", "24", "25", "31"} {
		input := "\x1b<" + code + "styled text\x1b>" + code
		expectTranslation(t, input, "styled text")
	}
}

func TestSilentKinds(t *testing.T) {
	for _, code := range []string{"05", "06", "11", "40", "41", "42", "50", "51", "52", "53", "54", "60"} {
		input := "\x1b<" + code + "machine state 1;;2;;3\x1b>" + code
		expectTranslation(t, input, "")
	}
}

func TestProtsAndTargetLabels(t *testing.T) {
	expectTranslation(t,
		"\x1b<64acid_shield force_absorption\x1b>64",
		"[prots]acid_shield force_absorption\n")
	expectTranslation(t,
		"\x1b<70Evil Dragon: 55%\x1b>70",
		"[target]Evil Dragon: 55%\n")
	// a bare tag still produces its label line
	expectTranslation(t, "\x1b<64\x1b>64", "[prots]\n")
}

func TestUnknownTagDiagnostic(t *testing.T) {
	expectTranslation(t, "\x1b<77hello\x1b>77", "[unknown tag 77]hello\n")
	expectTranslation(t, "\x1b<00\x1b>00", "[unknown tag 0]\n")
}

func TestMapperNarration(t *testing.T) {
	s := newTestSession(t)

	step := func(payload, want string) {
		t.Helper()
		s.Feed([]byte("\x1b<99" + payload + "\x1b>99"))
		if got := string(s.TakeOutput()); got != want {
			t.Errorf("payload %q:\n got  %q\n want %q", payload, got, want)
		}
	}

	// first location: entering narration
	step("BAT_MAPPER;;laenor;;room1;;north",
		"Entered area laenor with direction north\n")
	// same area: movement narration between room ids
	step("BAT_MAPPER;;laenor;;room2;;east",
		"Moved (room1) --east-> (room2)\n")
	// area change: entering narration again
	step("BAT_MAPPER;;desolathya;;cave1;;west",
		"Entered area desolathya with direction west\n")
	// overview map: exit narration naming the last area
	step("BAT_MAPPER;;REALM_MAP",
		"Exited to map from desolathya.\n")
	// and with no known area at all
	step("BAT_MAPPER;;REALM_MAP",
		"Exited to map from (unknown).\n")
}

func TestMapperDecodeFailureKeepsLocation(t *testing.T) {
	s := newTestSession(t)

	s.Feed([]byte("\x1b<99BAT_MAPPER;;laenor;;room1;;north\x1b>99"))
	s.TakeOutput()

	s.Feed([]byte("\x1b<99BAT_MAPPER;;broken\x1b>99"))
	if got := string(s.TakeOutput()); got != "" {
		t.Errorf("undecodable payload rendered %q", got)
	}
	if loc := s.Location(); loc == nil || loc.ID != "room1" {
		t.Errorf("location lost after decode failure: %+v", loc)
	}

	// still in the same area, so the next good payload narrates a move
	s.Feed([]byte("\x1b<99BAT_MAPPER;;laenor;;room2;;south\x1b>99"))
	if got := string(s.TakeOutput()); got != "Moved (room1) --south-> (room2)\n" {
		t.Errorf("post-failure move narrated wrong: %q", got)
	}
}

func TestMapperIgnoresNonSentinelBodies(t *testing.T) {
	expectTranslation(t, "\x1b<99not a mapper payload\x1b>99", "")
}

func TestImplicitCloseRendersExactlyOnce(t *testing.T) {
	// tag 70 never closes; opening tag 10 flushes it exactly once
	expectTranslation(t,
		"\x1b<70Dragon: 90%\x1b<10tail\x1b>10",
		"[target]Dragon: 90%\ntail")
}

func TestEmptyPendingTagSupersededSilently(t *testing.T) {
	// tag 11 opened with no content: nothing to flush
	expectTranslation(t,
		"\x1b<11\x1b<70hp\x1b>70",
		"[target]hp\n")
}

func TestArgumentOverwrittenBySecondBoundary(t *testing.T) {
	expectTranslation(t, "\x1b<10a\x1b|b\x1b|c\x1b>10", "b: c")
}

func TestTeardownRendersPendingTag(t *testing.T) {
	s := newTestSession(t)
	s.Feed([]byte("\x1b<70half a body"))
	s.Close()
	if got := string(s.TakeOutput()); got != "[target]half a body\n" {
		t.Errorf("teardown flush: %q", got)
	}
}

func TestTeardownReleasesDanglingMarker(t *testing.T) {
	s := newTestSession(t)
	s.Feed([]byte("text then \x1b"))
	s.Close()
	if got := string(s.TakeOutput()); got != "text then \x1b" {
		t.Errorf("dangling marker bytes lost: %q", got)
	}
}

func TestDispatchDeterministic(t *testing.T) {
	input := "x\x1b<20ff8700\x1b|amber\x1b>20" +
		"\x1b<10spec_prompt\x1b|>\x1b>10" +
		"\x1b<42shadow blast 2\x1b>42y"
	first := translate(t, input)
	for i := 0; i < 5; i++ {
		if got := translate(t, input); got != first {
			t.Fatalf("dispatch not deterministic:\n%q\n%q", first, got)
		}
	}
}

func TestOutputBufferDrainAndReuse(t *testing.T) {
	s := newTestSession(t)
	s.Feed([]byte("one"))
	if got := string(s.TakeOutput()); got != "one" {
		t.Fatalf("first drain: %q", got)
	}
	if got := string(s.TakeOutput()); got != "" {
		t.Fatalf("drain should clear: %q", got)
	}
	s.Feed([]byte("two"))
	if got := string(s.TakeOutput()); got != "two" {
		t.Fatalf("reuse after drain: %q", got)
	}
}
