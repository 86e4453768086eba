// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package proxy

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/batproxy/batproxy/proxy/logger"
)

// relayHarness wires a relay between two in-memory pipes, standing in
// for the MUD client and the game server.
type relayHarness struct {
	relay    *Relay
	client   net.Conn
	upstream net.Conn
	done     chan struct{}
}

func startRelay(t *testing.T) *relayHarness {
	t.Helper()

	logman, err := logger.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	server := &Server{
		logger: logman,
		relays: make(map[*Relay]bool),
	}

	clientSide, proxyClientSide := net.Pipe()
	upstreamSide, proxyUpstreamSide := net.Pipe()

	deadline := time.Now().Add(5 * time.Second)
	clientSide.SetDeadline(deadline)
	upstreamSide.SetDeadline(deadline)

	h := &relayHarness{
		relay:    NewRelay(server, NewStreamConn(proxyClientSide), proxyUpstreamSide, 4096),
		client:   clientSide,
		upstream: upstreamSide,
		done:     make(chan struct{}),
	}
	go func() {
		h.relay.Run()
		close(h.done)
	}()
	return h
}

func (h *relayHarness) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not shut down")
	}
}

func readChunk(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return buf[:n]
}

func TestRelayPassThrough(t *testing.T) {
	h := startRelay(t)

	// client keystrokes reach the game server untouched
	if _, err := h.client.Write([]byte("kill orc\n")); err != nil {
		t.Fatal(err)
	}
	if got := readChunk(t, h.upstream); !bytes.Equal(got, []byte("kill orc\n")) {
		t.Errorf("upstream got %q", got)
	}

	// game output is decoded on the way to the client
	if _, err := h.upstream.Write([]byte("plain \x1b<2000ff00\x1b|alarm!\x1b>20 done")); err != nil {
		t.Fatal(err)
	}
	want := "plain \x1b[38;5;46malarm!\x1b[0m done"
	if got := readChunk(t, h.client); !bytes.Equal(got, []byte(want)) {
		t.Errorf("client got %q, want %q", got, want)
	}

	h.upstream.Close()
	h.wait(t)
}

func TestRelayFlushOnUpstreamClose(t *testing.T) {
	h := startRelay(t)

	// a prompt tag never closed by the server
	if _, err := h.upstream.Write([]byte("\x1b<10spec_prompt\x1b|Hp:100")); err != nil {
		t.Fatal(err)
	}
	h.upstream.Close()

	// the disconnect flushes the pending prompt, go-ahead restored
	want := "Hp:100\xff\xf9"
	if got := readChunk(t, h.client); !bytes.Equal(got, []byte(want)) {
		t.Errorf("client got %q, want %q", got, want)
	}

	if _, err := h.client.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("expected EOF after teardown, got %v", err)
	}
	h.wait(t)
}

func TestRelayClientClose(t *testing.T) {
	h := startRelay(t)

	h.client.Close()

	if _, err := h.upstream.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("expected upstream close after client close, got %v", err)
	}
	h.wait(t)
}
