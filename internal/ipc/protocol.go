// Package ipc carries newline-delimited JSON commands over a unix socket.
package ipc

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
)

// maxMessageBytes bounds one request or response line.
const maxMessageBytes = 64 << 10

// Request is one client command. Text carries the argument of speak and
// sentiment commands.
type Request struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
}

// Response is the owner's reply to one Request.
type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Sentiment  string `json:"sentiment,omitempty"`
}

func writeMessage(conn net.Conn, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(line, '\n'))
	return err
}

// readLine returns the first line from r. A peer that hangs up before
// sending one yields io.ErrUnexpectedEOF.
func readLine(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageBytes)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.ErrUnexpectedEOF
	}
	return scanner.Bytes(), nil
}
