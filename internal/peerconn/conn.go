// Package peerconn frames outgoing messages and reassembles incoming
// ones across a net.Conn, tolerating partial reads the way TCP delivers
// them. It owns exactly one goroutine pair per connection (reader,
// writer) and funnels everything through channels so a single-threaded
// caller (the torrent driver's event loop) never blocks on socket I/O.
package peerconn

import (
	"net"
	"time"

	"github.com/shammishailaj/gorain/internal/peerprotocol"
)

// Conn is a live, post-handshake PWP connection.
type Conn struct {
	conn net.Conn
	id   [20]byte
	log  logInterface

	messagesC chan peerprotocol.Message
	sendC     chan peerprotocol.Message
	closeC    chan struct{}
	closedC   chan struct{}

	lastSend time.Time
}

// New wraps an already-handshaken net.Conn. id is the remote peer-id
// learned from the handshake.
func New(conn net.Conn, id [20]byte, log logInterface) *Conn {
	return &Conn{
		conn:      conn,
		id:        id,
		log:       log,
		messagesC: make(chan peerprotocol.Message, 64),
		sendC:     make(chan peerprotocol.Message, 64),
		closeC:    make(chan struct{}),
		closedC:   make(chan struct{}),
		lastSend:  time.Now(),
	}
}

func (c *Conn) ID() [20]byte { return c.id }

func (c *Conn) Addr() *net.TCPAddr {
	if a, ok := c.conn.RemoteAddr().(*net.TCPAddr); ok {
		return a
	}
	return nil
}

func (c *Conn) IP() string {
	if a := c.Addr(); a != nil {
		return a.IP.String()
	}
	return c.conn.RemoteAddr().String()
}

// Messages is fed one decoded message at a time as frames complete.
func (c *Conn) Messages() <-chan peerprotocol.Message { return c.messagesC }

// SendMessage enqueues msg for the writer goroutine. It never blocks past
// the connection closing.
func (c *Conn) SendMessage(msg peerprotocol.Message) {
	select {
	case c.sendC <- msg:
	case <-c.closeC:
	}
}

// LastSend reports when the writer goroutine last put bytes on the wire,
// used by the keep-alive timer.
func (c *Conn) LastSend() time.Time { return c.lastSend }

// Run starts the reader and writer goroutines and blocks until the
// connection is closed, either by Close or by an I/O error on either
// side. The caller should run this in its own goroutine.
func (c *Conn) Run() {
	defer close(c.closedC)

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		c.readLoop()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	select {
	case <-c.closeC:
	case <-readerDone:
	case <-writerDone:
	}
	c.conn.Close()
	<-readerDone
	<-writerDone
}

func (c *Conn) readLoop() {
	defer close(c.messagesC)
	var dec peerprotocol.Decoder
	buf := make([]byte, 16*1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				msg, derr := dec.Next()
				if derr == peerprotocol.ErrFrameTruncated {
					break
				}
				if derr != nil {
					// Unknown message: frame already skipped, keep going.
					c.log.Debugln("skipping malformed frame:", derr)
					continue
				}
				select {
				case c.messagesC <- msg:
				case <-c.closeC:
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case msg := <-c.sendC:
			if err := peerprotocol.Write(c.conn, msg); err != nil {
				return
			}
			c.lastSend = time.Now()
		case <-c.closeC:
			return
		}
	}
}

// Close tears down the connection and waits for both goroutines to exit.
func (c *Conn) Close() {
	select {
	case <-c.closeC:
		return
	default:
		close(c.closeC)
	}
	<-c.closedC
}
