// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package proxy

import (
	"net"

	"github.com/gorilla/websocket"
)

// Conn is a client connection as the relay sees it: a byte pipe with
// a remote address, regardless of whether the client spoke TCP, a
// unix socket, or websocket.
type Conn interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	RemoteAddr() net.Addr
	Close() error
}

// StreamConn is a regular stream connection (TCP or unix socket),
// possibly wrapped in TLS by the listener.
type StreamConn struct {
	net.Conn
}

func NewStreamConn(conn net.Conn) StreamConn {
	return StreamConn{Conn: conn}
}

// WSConn adapts a websocket session to the byte-pipe view: each Write
// becomes one binary message and reads drain arriving messages in
// order. Text and binary messages are treated alike; the MUD stream
// is bytes either way.
type WSConn struct {
	conn   *websocket.Conn
	unread []byte
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (wc *WSConn) Read(p []byte) (n int, err error) {
	for len(wc.unread) == 0 {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		wc.unread = data
	}
	n = copy(p, wc.unread)
	wc.unread = wc.unread[n:]
	return n, nil
}

func (wc *WSConn) Write(p []byte) (n int, err error) {
	if err := wc.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (wc *WSConn) RemoteAddr() net.Addr {
	return wc.conn.RemoteAddr()
}

func (wc *WSConn) Close() error {
	return wc.conn.Close()
}
