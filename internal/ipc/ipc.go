// Package ipc is the daemon's control plane: a unix socket carrying
// one JSON request/response pair per connection.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"jarvis/internal/cards"
)

// Request is one control command from jarvis-ctl.
type Request struct {
	Cmd  string `json:"cmd"`            // press | release | status | say
	Text string `json:"text,omitempty"` // say only
}

// Response reports the outcome plus a session snapshot.
type Response struct {
	OK         bool           `json:"ok"`
	Error      string         `json:"error,omitempty"`
	State      string         `json:"state,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
	Reply      string         `json:"reply,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	Card       *cards.Payload `json:"card,omitempty"`
}

// Server accepts control connections and dispatches to a handler.
type Server struct {
	ln net.Listener
}

func StartServer(socketPath string, handler func(Request) Response) (*Server, error) {
	os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", socketPath, err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleConn(conn, handler)
		}
	}()

	return &Server{ln: ln}, nil
}

func (s *Server) Close() error {
	return s.ln.Close()
}

func handleConn(conn net.Conn, handler func(Request) Response) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		json.NewEncoder(conn).Encode(Response{OK: false, Error: "malformed request"})
		return
	}

	json.NewEncoder(conn).Encode(handler(req))
}

// Send delivers one command to a running daemon and waits for the
// response.
func Send(socketPath string, req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return Response{}, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}
