// Package rcon implements a minimal Source-RCON client over TCP.
package rcon

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Packet types defined by the Source RCON protocol.
const (
	typeResponseValue = 0
	typeExecCommand   = 2
	typeAuthResponse  = 2
	typeAuth          = 3
)

const (
	// maxBodySize caps the accepted body length of a single packet.
	maxBodySize = 4096
	// packetOverhead is id + type + two trailing null bytes.
	packetOverhead = 10
)

var (
	ErrAuthFailure  = errors.New("rcon: authentication rejected")
	ErrEmptyCommand = errors.New("rcon: empty command")
)

// packet is one framed request or response.
type packet struct {
	ID   int32
	Type int32
	Body string
}

// encode frames p as: int32 LE size | int32 id | int32 type | body | 0x00 0x00.
// The size field counts everything after itself.
func encode(w io.Writer, p packet) error {
	if len(p.Body) > maxBodySize {
		return fmt.Errorf("rcon: body too large (%d bytes)", len(p.Body))
	}
	buf := make([]byte, 4+packetOverhead+len(p.Body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(packetOverhead+len(p.Body)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.ID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Type))
	copy(buf[12:], p.Body)
	// Trailing two null bytes are already zero from make.
	_, err := w.Write(buf)
	return err
}

// decode reads one framed packet: int32 size, then id, type, and the body
// minus the two trailing null bytes.
func decode(r io.Reader) (packet, error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return packet{}, fmt.Errorf("rcon: reading size: %w", err)
	}
	if size < packetOverhead || size > maxBodySize+packetOverhead {
		return packet{}, fmt.Errorf("rcon: invalid packet size %d", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return packet{}, fmt.Errorf("rcon: reading payload: %w", err)
	}

	p := packet{
		ID:   int32(binary.LittleEndian.Uint32(payload[0:4])),
		Type: int32(binary.LittleEndian.Uint32(payload[4:8])),
	}
	body := payload[8:]
	// Strip the two trailing nulls; tolerate servers that omit them.
	if len(body) >= 2 && body[len(body)-1] == 0 && body[len(body)-2] == 0 {
		body = body[:len(body)-2]
	}
	p.Body = string(body)
	return p, nil
}

// Conn is an authenticated RCON connection. A Conn serializes Exec calls;
// there is no pipelining and no multi-packet response reassembly.
type Conn struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	nextID  int32
}

// Dial connects to addr, authenticates with password, and returns a ready
// connection. The timeout bounds the dial and every subsequent exchange.
func Dial(ctx context.Context, addr, password string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rcon: connecting to %s: %w", addr, err)
	}

	c := &Conn{
		conn:    netConn,
		reader:  bufio.NewReader(netConn),
		timeout: timeout,
		nextID:  1,
	}

	if err := c.auth(password); err != nil {
		netConn.Close()
		return nil, err
	}
	return c, nil
}

// auth performs the SERVERDATA_AUTH exchange. A response with id == -1
// signals a rejected password.
func (c *Conn) auth(password string) error {
	id := c.nextID
	c.nextID++

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if err := encode(c.conn, packet{ID: id, Type: typeAuth, Body: password}); err != nil {
		return fmt.Errorf("rcon: sending auth: %w", err)
	}

	// Some servers send an empty response-value packet before the auth
	// response; skip past it.
	for {
		resp, err := decode(c.reader)
		if err != nil {
			return fmt.Errorf("rcon: reading auth response: %w", err)
		}
		if resp.Type != typeAuthResponse {
			continue
		}
		if resp.ID == -1 {
			return ErrAuthFailure
		}
		if resp.ID != id {
			return fmt.Errorf("rcon: auth response id mismatch (got %d, want %d)", resp.ID, id)
		}
		return nil
	}
}

// Exec sends one command and returns the body of the single response packet.
func (c *Conn) Exec(command string) (string, error) {
	if command == "" {
		return "", ErrEmptyCommand
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if err := encode(c.conn, packet{ID: id, Type: typeExecCommand, Body: command}); err != nil {
		return "", fmt.Errorf("rcon: sending command: %w", err)
	}

	resp, err := decode(c.reader)
	if err != nil {
		return "", err
	}
	if resp.ID != id {
		return "", fmt.Errorf("rcon: response id mismatch (got %d, want %d)", resp.ID, id)
	}
	return resp.Body, nil
}

// Close closes the underlying TCP connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
