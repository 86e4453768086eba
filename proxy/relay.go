// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package proxy

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"code.cloudfoundry.org/bytefmt"
)

// clientReadBufferSize is the buffer for bytes typed at the MUD client.
// Command input is tiny; this never needs tuning.
const clientReadBufferSize = 4096

// Relay owns one proxied connection pair: the accepted client conn, the
// dialed game server conn, and the decoder session between them. Client
// bytes pass upstream verbatim; game bytes run through the decoder and
// the rendered output goes to the client.
type Relay struct {
	server   *Server
	client   Conn
	upstream net.Conn
	session  *Session

	// remote address of the client, used to label log lines
	id string

	readBuffer int

	closeOnce sync.Once

	bytesFromClient   uint64 // atomic
	bytesFromUpstream uint64 // atomic
}

func NewRelay(server *Server, client Conn, upstream net.Conn, readBuffer int) *Relay {
	return &Relay{
		server:     server,
		client:     client,
		upstream:   upstream,
		session:    NewSession(server.logger),
		id:         client.RemoteAddr().String(),
		readBuffer: readBuffer,
	}
}

// Run pumps both directions until either side closes, then tears the
// relay down. It blocks until the session is over.
func (relay *Relay) Run() {
	clientDone := make(chan struct{})
	go func() {
		relay.pumpClient()
		close(clientDone)
	}()
	relay.pumpUpstream()
	<-clientDone

	relay.server.logger.Info("session", "closed", relay.id,
		fmt.Sprintf("sent %s, received %s",
			bytefmt.ByteSize(atomic.LoadUint64(&relay.bytesFromClient)),
			bytefmt.ByteSize(atomic.LoadUint64(&relay.bytesFromUpstream))))
}

// pumpClient copies client input (commands typed at the MUD client) to
// the game server unmodified.
func (relay *Relay) pumpClient() {
	buf := make([]byte, clientReadBufferSize)
	for {
		n, err := relay.client.Read(buf)
		if n > 0 {
			atomic.AddUint64(&relay.bytesFromClient, uint64(n))
			if relay.server.logger.IsLoggingSessionIO() {
				relay.server.logger.Debug("session-io", relay.id, "<- ", strconv.Quote(string(buf[:n])))
			}
			if _, werr := relay.upstream.Write(buf[:n]); werr != nil {
				relay.Close()
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				relay.server.logger.Debug("session", "client read ended", relay.id, err.Error())
			}
			relay.Close()
			return
		}
	}
}

// pumpUpstream reads game output, feeds it through the decoder, and
// writes whatever rendered bytes are ready to the client.
func (relay *Relay) pumpUpstream() {
	buf := make([]byte, relay.readBuffer)
	for {
		n, err := relay.upstream.Read(buf)
		if n > 0 {
			atomic.AddUint64(&relay.bytesFromUpstream, uint64(n))
			relay.session.Feed(buf[:n])
			if werr := relay.writeClient(relay.session.TakeOutput()); werr != nil {
				relay.Close()
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				relay.server.logger.Debug("upstream", "read ended", relay.id, err.Error())
			}
			// release anything the decoder was still holding, such as a
			// partial tag marker cut off by the disconnect
			relay.session.Close()
			relay.writeClient(relay.session.TakeOutput())
			relay.Close()
			return
		}
	}
}

func (relay *Relay) writeClient(out []byte) error {
	if len(out) == 0 {
		return nil
	}
	if relay.server.logger.IsLoggingSessionIO() {
		relay.server.logger.Debug("session-io", relay.id, " ->", strconv.Quote(string(out)))
	}
	_, err := relay.client.Write(out)
	return err
}

// Close shuts both connections down. Safe to call more than once; the
// pumps race to it on teardown.
func (relay *Relay) Close() {
	relay.closeOnce.Do(func() {
		relay.client.Close()
		relay.upstream.Close()
	})
}
