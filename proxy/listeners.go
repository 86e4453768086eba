// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package proxy

import (
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/batproxy/batproxy/proxy/utils"
)

var (
	errCantReloadListener = errors.New("can't switch a listener between stream and websocket")
)

// wsReadLimit caps buffered websocket messages so a misbehaving client
// can't balloon memory.
const wsReadLimit = 1 << 20

// Listener is an abstract wrapper for a listener (TCP port or unix
// domain socket). Server tracks these by listen address and can
// reload or stop them during rehash.
type Listener interface {
	Reload(config utils.ListenerConfig) error
	Stop() error
}

// NewListener creates a new listener from its config file block.
func NewListener(server *Server, addr string, config utils.ListenerConfig) (result Listener, err error) {
	baseListener, err := createBaseListener(addr)
	if err != nil {
		return
	}

	wrappedListener := utils.NewReloadableListener(baseListener, config)

	if config.WebSocket {
		return NewWSListener(server, addr, wrappedListener, config)
	}
	return NewNetListener(server, addr, wrappedListener, config)
}

func createBaseListener(addr string) (listener net.Listener, err error) {
	addr = strings.TrimPrefix(addr, "unix:")
	if strings.HasPrefix(addr, "/") {
		// https://stackoverflow.com/a/34881585
		os.Remove(addr)
		listener, err = net.Listen("unix", addr)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	return
}

// NetListener is a Listener for a regular stream socket (TCP or unix
// domain).
type NetListener struct {
	listener *utils.ReloadableListener
	server   *Server
	addr     string
}

func NewNetListener(server *Server, addr string, listener *utils.ReloadableListener, config utils.ListenerConfig) (result *NetListener, err error) {
	nl := NetListener{
		server:   server,
		listener: listener,
		addr:     addr,
	}
	go nl.serve()
	return &nl, nil
}

func (nl *NetListener) Reload(config utils.ListenerConfig) error {
	if config.WebSocket {
		return errCantReloadListener
	}
	nl.listener.Reload(config)
	return nil
}

func (nl *NetListener) Stop() error {
	return nl.listener.Close()
}

func (nl *NetListener) serve() {
	for {
		conn, err := nl.listener.Accept()

		switch {
		case err == nil:
			go nl.server.RunSession(NewStreamConn(conn))
		case err == utils.ErrNetClosing || errors.Is(err, net.ErrClosed):
			return
		default:
			nl.server.logger.Error("listeners", "accept error", nl.addr, err.Error())
		}
	}
}

// WSListener is a listener for websocket clients (initially HTTP,
// upgraded to a message-based byte pipe, possibly with TLS).
type WSListener struct {
	listener   *utils.ReloadableListener
	httpServer *http.Server
	server     *Server
	addr       string
}

func NewWSListener(server *Server, addr string, listener *utils.ReloadableListener, config utils.ListenerConfig) (result *WSListener, err error) {
	result = &WSListener{
		listener: listener,
		server:   server,
		addr:     addr,
	}
	result.httpServer = &http.Server{
		Handler:      http.HandlerFunc(result.handle),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go result.httpServer.Serve(listener)
	return
}

func (wl *WSListener) Reload(config utils.ListenerConfig) error {
	if !config.WebSocket {
		return errCantReloadListener
	}
	wl.listener.Reload(config)
	return nil
}

func (wl *WSListener) Stop() error {
	return wl.httpServer.Close()
}

func (wl *WSListener) handle(w http.ResponseWriter, r *http.Request) {
	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		wl.server.logger.Info("listeners", "websocket upgrade error", wl.addr, err.Error())
		return
	}

	conn.SetReadLimit(wsReadLimit)

	go wl.server.RunSession(NewWSConn(conn))
}
