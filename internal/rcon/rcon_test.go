package rcon

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	err := encode(&buf, packet{ID: 7, Type: typeExecCommand, Body: "status"})
	require.NoError(t, err)

	raw := buf.Bytes()
	// size | id | type | body | two nulls
	require.Len(t, raw, 4+10+len("status"))
	require.Equal(t, uint32(10+len("status")), binary.LittleEndian.Uint32(raw[0:4]))
	require.Equal(t, uint32(7), binary.LittleEndian.Uint32(raw[4:8]))
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(raw[8:12]))
	require.Equal(t, "status", string(raw[12:12+6]))
	require.Equal(t, byte(0), raw[len(raw)-1])
	require.Equal(t, byte(0), raw[len(raw)-2])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []packet{
		{ID: 1, Type: typeAuth, Body: "hunter2"},
		{ID: 42, Type: typeExecCommand, Body: "ListPlayers"},
		{ID: 3, Type: typeResponseValue, Body: ""},
	}
	for _, p := range tests {
		var buf bytes.Buffer
		require.NoError(t, encode(&buf, p))
		got, err := decode(&buf)
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
}

func TestDecodeRejectsBadSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, int32(3)))
	_, err := decode(&buf)
	require.Error(t, err)

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, int32(1<<20)))
	_, err = decode(&buf)
	require.Error(t, err)
}

func TestDecodeNegativeAuthID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, packet{ID: -1, Type: typeAuthResponse, Body: ""}))
	got, err := decode(&buf)
	require.NoError(t, err)
	require.Equal(t, int32(-1), got.ID)
}

// fakeServer accepts a single connection and answers auth plus commands.
func fakeServer(t *testing.T, password string, handler func(cmd string) string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			req, err := decode(conn)
			if err != nil {
				return
			}
			switch req.Type {
			case typeAuth:
				id := req.ID
				if req.Body != password {
					id = -1
				}
				encode(conn, packet{ID: id, Type: typeAuthResponse})
			case typeExecCommand:
				encode(conn, packet{ID: req.ID, Type: typeResponseValue, Body: handler(req.Body)})
			}
		}
	}()

	return ln.Addr().String()
}

func TestDialAndExec(t *testing.T) {
	addr := fakeServer(t, "secret", func(cmd string) string {
		return "echo:" + cmd
	})

	conn, err := Dial(context.Background(), addr, "secret", 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	out, err := conn.Exec("ListPlayers")
	require.NoError(t, err)
	require.Equal(t, "echo:ListPlayers", out)

	_, err = conn.Exec("")
	require.ErrorIs(t, err, ErrEmptyCommand)
}

func TestDialAuthFailure(t *testing.T) {
	addr := fakeServer(t, "secret", func(string) string { return "" })

	_, err := Dial(context.Background(), addr, "wrong", 2*time.Second)
	require.ErrorIs(t, err, ErrAuthFailure)
}
