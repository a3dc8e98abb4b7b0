// Package ipc exposes a local control socket so the assistant can be driven
// from the command line alongside the browser UI.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

const SocketPath = "/tmp/dora.sock"

// Commands accepted over the socket.
const (
	CmdListenStart = "listen-start"
	CmdListenStop  = "listen-stop"
	CmdClear       = "clear"
)

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	Status string `json:"status"`
}

// StartServer listens on the unix socket and feeds each decoded command to
// handler, writing its status string back to the client.
func StartServer(handler func(ControlMessage) string) error {
	os.Remove(SocketPath)

	ln, err := net.Listen("unix", SocketPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return nil
}

func handleConn(conn net.Conn, handler func(ControlMessage) string) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}
	status := handler(msg)
	json.NewEncoder(conn).Encode(Reply{Status: status})
}

// SendCommand delivers one command and returns the daemon's status reply.
func SendCommand(cmd string) (string, error) {
	conn, err := net.Dial("unix", SocketPath)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return "", err
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return "", err
	}
	return reply.Status, nil
}
