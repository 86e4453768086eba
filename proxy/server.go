// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package proxy

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/okzk/sdnotify"

	"github.com/batproxy/batproxy/proxy/bc"
	"github.com/batproxy/batproxy/proxy/logger"
	"github.com/batproxy/batproxy/proxy/utils"
)

// Server is the proxy: it owns the listener table, the set of active
// relays, and the config, and coordinates signals, rehash and shutdown.
type Server struct {
	config                 *Config
	configFilename         string
	configurableStateMutex sync.RWMutex // tier 1; guards config

	listeners      map[string]Listener
	listenersMutex sync.Mutex // tier 1; guards listeners

	relays       map[*Relay]bool
	relaysMutex  sync.Mutex // tier 1
	shuttingDown bool       // guarded by relaysMutex

	logger          *logger.Manager
	rehashMutex     sync.Mutex // tier 3
	rehashSignal    chan os.Signal
	signals         chan os.Signal
	tracebackSignal chan os.Signal
}

// NewServer returns a new proxy server.
func NewServer(config *Config, logger *logger.Manager) (*Server, error) {
	server := &Server{
		listeners:    make(map[string]Listener),
		relays:       make(map[*Relay]bool),
		logger:       logger,
		rehashSignal: make(chan os.Signal, 1),
		signals:      make(chan os.Signal, len(utils.ServerExitSignals)),
	}

	if err := server.applyConfig(config, true); err != nil {
		return nil, err
	}

	// Attempt to clean up when receiving these signals.
	signal.Notify(server.signals, utils.ServerExitSignals...)
	signal.Notify(server.rehashSignal, syscall.SIGHUP)

	if len(utils.ServerTracebackSignals) > 0 {
		server.tracebackSignal = make(chan os.Signal, 1)
		signal.Notify(server.tracebackSignal, utils.ServerTracebackSignals...)
		go server.handleTracebackSignals()
	}

	return server, nil
}

// Config returns the current config.
func (server *Server) Config() *Config {
	server.configurableStateMutex.RLock()
	defer server.configurableStateMutex.RUnlock()
	return server.config
}

// Run starts the server.
func (server *Server) Run() {
	sdnotify.Ready()

	done := false
	for !done {
		select {
		case <-server.signals:
			server.Shutdown()
			done = true

		case <-server.rehashSignal:
			server.logger.Info("rehash", "Rehashing due to SIGHUP")
			go func() {
				err := server.rehash()
				if err != nil {
					server.logger.Error("rehash", fmt.Sprintln("Failed to rehash:", err.Error()))
				}
			}()
		}
	}
}

// Shutdown shuts down the server: all listeners stop accepting and
// every active relay is torn down.
func (server *Server) Shutdown() {
	sdnotify.Stopping()
	server.logger.Info("shutdown", fmt.Sprintf("%s shutting down", Ver))

	server.relaysMutex.Lock()
	server.shuttingDown = true
	relays := make([]*Relay, 0, len(server.relays))
	for relay := range server.relays {
		relays = append(relays, relay)
	}
	server.relaysMutex.Unlock()

	server.listenersMutex.Lock()
	for addr, listener := range server.listeners {
		listener.Stop()
		server.logger.Debug("shutdown", "stopped listening on", addr)
	}
	server.listenersMutex.Unlock()

	for _, relay := range relays {
		relay.Close()
	}
}

func (server *Server) rehash() error {
	server.logger.Debug("rehash", "Starting rehash")

	// only let one REHASH go on at a time
	server.rehashMutex.Lock()
	defer server.rehashMutex.Unlock()

	sdnotify.Reloading()
	defer sdnotify.Ready()

	server.logger.Debug("rehash", "Got rehash lock")

	config, err := LoadConfig(server.configFilename)
	if err != nil {
		return fmt.Errorf("Error loading config file config: %s", err.Error())
	}

	err = server.applyConfig(config, false)
	if err != nil {
		return fmt.Errorf("Error applying config changes: %s", err.Error())
	}

	return nil
}

func (server *Server) applyConfig(config *Config, initial bool) error {
	if initial {
		server.configFilename = config.Filename
	}

	// reload logging config
	err := server.logger.ApplyConfig(config.Logging)
	if err != nil {
		return err
	}

	// the upstream address and TLS mode apply to sessions dialed from
	// now on; running relays keep the connection they already have
	server.configurableStateMutex.Lock()
	server.config = config
	server.configurableStateMutex.Unlock()

	// we are now open for business
	server.setupListeners(config)

	return nil
}

func (server *Server) setupListeners(config *Config) {
	logListener := func(addr string, config utils.ListenerConfig) {
		server.logger.Info("listeners",
			fmt.Sprintf("now listening on %s, tls=%t, websocket=%t.", addr, (config.TLSConfig != nil), config.WebSocket),
		)
	}

	server.listenersMutex.Lock()
	defer server.listenersMutex.Unlock()

	// update or destroy all existing listeners
	for addr := range server.listeners {
		currentListener := server.listeners[addr]
		newConfig, stillConfigured := config.trueListeners[addr]

		if stillConfigured {
			if reloadErr := currentListener.Reload(newConfig); reloadErr == nil {
				logListener(addr, newConfig)
			} else {
				// stop the listener; we will attempt to replace it below
				currentListener.Stop()
				delete(server.listeners, addr)
			}
		} else {
			currentListener.Stop()
			delete(server.listeners, addr)
			server.logger.Info("listeners", fmt.Sprintf("stopped listening on %s.", addr))
		}
	}

	// create new listeners that were not previously configured
	for newAddr, newConfig := range config.trueListeners {
		_, exists := server.listeners[newAddr]
		if !exists {
			// make a new listener
			newListener, err := NewListener(server, newAddr, newConfig)
			if err == nil {
				server.listeners[newAddr] = newListener
				logListener(newAddr, newConfig)
			} else {
				server.logger.Error("listeners", fmt.Sprintf("couldn't listen on %s: %v", newAddr, err))
			}
		}
	}
}

// RunSession drives one accepted client connection: dial the game
// server, opt in to the out-of-band tag protocol, then relay until
// either side goes away.
func (server *Server) RunSession(client Conn) {
	config := server.Config()

	server.logger.Debug("session", fmt.Sprintf("Client connecting from %v", client.RemoteAddr()))

	upstream, err := server.dialUpstream(&config.Upstream)
	if err != nil {
		server.logger.Error("upstream", "could not reach the game server", err.Error())
		client.Close()
		return
	}

	if _, err := upstream.Write([]byte(bc.EnableMode)); err != nil {
		server.logger.Error("upstream", "could not enable the tag protocol", err.Error())
		upstream.Close()
		client.Close()
		return
	}

	relay := NewRelay(server, client, upstream, config.Upstream.readBufferBytes)
	if err := server.addRelay(relay); err != nil {
		upstream.Close()
		client.Close()
		return
	}
	server.logger.Info("session", fmt.Sprintf("Relaying %s to %s", relay.id, config.Upstream.Address))

	relay.Run()
	server.removeRelay(relay)
}

func (server *Server) dialUpstream(conf *UpstreamConfig) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout:   conf.DialTimeout,
		KeepAlive: conf.Keepalive,
	}
	conn, err := dialer.Dial("tcp", conf.Address)
	if err != nil {
		return nil, err
	}

	if conf.TLS {
		host, _, _ := net.SplitHostPort(conf.Address)
		tlsConn := tls.Client(conn, &tls.Config{ServerName: host})
		conn.SetDeadline(time.Now().Add(conf.DialTimeout))
		if err := tlsConn.Handshake(); err != nil {
			tlsConn.Close()
			return nil, err
		}
		conn.SetDeadline(time.Time{})
		conn = tlsConn
	}

	return conn, nil
}

func (server *Server) addRelay(relay *Relay) error {
	server.relaysMutex.Lock()
	defer server.relaysMutex.Unlock()
	if server.shuttingDown {
		return errServerShuttingDown
	}
	server.relays[relay] = true
	return nil
}

func (server *Server) removeRelay(relay *Relay) {
	server.relaysMutex.Lock()
	delete(server.relays, relay)
	server.relaysMutex.Unlock()
}

func (server *Server) handleTracebackSignals() {
	for range server.tracebackSignal {
		// dump a full goroutine stack trace to the log
		buf := make([]byte, 1<<20)
		stacklen := runtime.Stack(buf, true)
		server.logger.Error("server", "Dumping stack traces of all goroutines", string(buf[:stacklen]))
	}
}
