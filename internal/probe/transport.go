package probe

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// tlsPort is the port that gets a TLS layer; everything else speaks
// plaintext h2c.
const tlsPort = 443

// dialTarget opens the transport for one reset probe: a direct TCP
// connection, or a CONNECT tunnel when proxyURL is set, with TLS (ALPN h2,
// verification off) layered on top when port is the TLS port. The frame
// loop above it never learns which path was taken.
func dialTarget(host string, port int, timeout time.Duration, proxyURL string) (net.Conn, error) {
	var (
		conn net.Conn
		err  error
	)
	if proxyURL != "" {
		conn, err = dialTunnel(proxyURL, host, port, timeout)
	} else {
		conn, err = net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
		err = errors.Wrap(err, "dial")
	}
	if err != nil {
		return nil, err
	}

	if port != tlsPort {
		return conn, nil
	}

	tc := tls.Client(conn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
		NextProtos:         []string{"h2"},
	})
	tc.SetDeadline(time.Now().Add(timeout))
	if err := tc.Handshake(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "tls handshake")
	}
	tc.SetDeadline(time.Time{})
	return tc, nil
}

// dialTunnel connects to the proxy and asks it to CONNECT through to
// host:port. The returned conn is the raw tunnel; TLS, if any, is the
// caller's job.
func dialTunnel(proxyURL, host string, port int, timeout time.Duration) (net.Conn, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse proxy url")
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrap(err, "dial proxy")
	}
	conn.SetDeadline(time.Now().Add(timeout))

	req := fmt.Sprintf("CONNECT %s:%d HTTP/1.1\r\nHost: %s:%d\r\n\r\n", host, port, host, port)
	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "send CONNECT")
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "read CONNECT response")
	}
	if !strings.Contains(status, " 200 ") {
		conn.Close()
		return nil, errors.Errorf("proxy refused tunnel: %s", strings.TrimSpace(status))
	}
	// Drain the remaining response headers up to the blank line.
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "read CONNECT response")
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}

	conn.SetDeadline(time.Time{})
	return &tunnelConn{Conn: conn, br: br}, nil
}

// tunnelConn hands back any bytes the bufio reader consumed past the CONNECT
// response before exposing the raw connection.
type tunnelConn struct {
	net.Conn
	br *bufio.Reader
}

func (c *tunnelConn) Read(p []byte) (int, error) {
	return c.br.Read(p)
}
