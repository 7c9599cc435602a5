// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"

	"github.com/eclipse/paho.golang/packets"
)

// ConnectionProvider is a function that returns a net.Conn connected to an
// MQTT server that is ready to read to and write from. Note that the returned
// net.Conn must be thread-safe (i.e., concurrent Write calls must not
// interleave).
type ConnectionProvider func(context.Context) (net.Conn, error)

// TCPConnection is a ConnectionProvider that connects to an MQTT server over
// TCP.
func TCPConnection(hostname string, port uint16) ConnectionProvider {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", address(hostname, port))
		if err != nil {
			return nil, &ConnectionError{
				message: "error opening TCP connection",
				wrapped: err,
			}
		}
		return packets.NewThreadSafeConn(conn), nil
	}
}

// TLSConnection is a ConnectionProvider that connects to an MQTT server with
// TLS over TCP. A nil config uses the zero configuration.
func TLSConnection(
	hostname string,
	port uint16,
	config *tls.Config,
) ConnectionProvider {
	return func(ctx context.Context) (net.Conn, error) {
		d := tls.Dialer{Config: config}
		conn, err := d.DialContext(ctx, "tcp", address(hostname, port))
		if err != nil {
			return nil, &ConnectionError{
				message: "error opening TLS connection",
				wrapped: err,
			}
		}
		return packets.NewThreadSafeConn(conn), nil
	}
}

func address(hostname string, port uint16) string {
	return net.JoinHostPort(hostname, strconv.Itoa(int(port)))
}
