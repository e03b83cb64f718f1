// Package ec talks to the event console daemon: it translates queries into
// the daemon's line-oriented GET protocol, streams back tab-separated
// replies, and re-applies authorization locally.
package ec

import (
	"fmt"
	"net"
	"time"
)

// Dialer opens the transport to the event console. One exclusive connection
// is used per query: connect, send request, stream reply, close.
type Dialer interface {
	Dial() (net.Conn, error)
}

// UnixDialer connects to the event console status socket.
type UnixDialer struct {
	Path    string
	Timeout time.Duration
}

func (d UnixDialer) Dial() (net.Conn, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("unix", d.Path, timeout)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to event console at %s: %w", d.Path, err)
	}
	return conn, nil
}

// GatewayError reports that the event console was unreachable or misbehaved.
// It is a per-query error: the caller renders it as a gateway failure and
// carries on.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("event console gateway: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
