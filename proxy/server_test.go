// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package proxy

import (
	"net"
	"sync"
	"testing"

	"github.com/batproxy/batproxy/proxy/logger"
	"github.com/batproxy/batproxy/proxy/utils"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logman, err := logger.NewManager(nil)
	if err != nil {
		t.Fatalf("logger manager: %v", err)
	}
	return &Server{
		listeners: make(map[string]Listener),
		relays:    make(map[*Relay]bool),
		logger:    logman,
	}
}

// Rehash swaps the listener table from its own goroutine while an exit
// signal drives Shutdown; both sides must serialize on the table.
func TestShutdownDuringListenerRehash(t *testing.T) {
	server := newTestServer(t)

	with := &Config{trueListeners: map[string]utils.ListenerConfig{"127.0.0.1:0": {}}}
	without := &Config{trueListeners: map[string]utils.ListenerConfig{}}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			server.setupListeners(with)
			server.setupListeners(without)
		}
	}()

	server.Shutdown()
	wg.Wait()

	// drop anything the swap loop bound after the shutdown
	server.setupListeners(without)

	if len(server.listeners) != 0 {
		t.Errorf("%d listeners still registered", len(server.listeners))
	}
}

func TestShutdownRefusesNewRelays(t *testing.T) {
	server := newTestServer(t)
	server.Shutdown()

	client, upstream := net.Pipe()
	defer client.Close()
	defer upstream.Close()

	relay := NewRelay(server, NewStreamConn(client), upstream, 4096)
	if err := server.addRelay(relay); err != errServerShuttingDown {
		t.Errorf("addRelay after shutdown: %v", err)
	}
}
