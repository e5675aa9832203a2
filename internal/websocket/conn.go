package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Dial opens a WebSocket connection to a ws:// or wss:// url and returns it
// as a byte stream carrying MQTT packets in binary messages.
func Dial(ctx context.Context, url string, tlsConf *tls.Config) (net.Conn, error) {
	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{"mqtt"}, // [MQTT-6.0.0-3]
		TLSClientConfig:  tlsConf,
	}

	conn, resp, err := d.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, errors.New("websocket handshake failed: " + resp.Status)
		}
		return nil, err
	}
	if conn.Subprotocol() != "mqtt" { // [MQTT-6.0.0-4]
		conn.Close()
		return nil, errors.New("server did not accept websocket sub protocol 'mqtt'")
	}

	return &wsConn{Conn: conn}, nil
}

type wsConn struct {
	*websocket.Conn
	r io.Reader
}

func (c *wsConn) Write(p []byte) (int, error) {
	err := c.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			var err error
			var mt int
			if mt, c.r, err = c.NextReader(); err != nil {
				return 0, err
			}
			if mt != websocket.BinaryMessage { // [MQTT-6.0.0-1]
				return 0, errors.New("not binary message")
			}
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			} else {
				continue
			}
		}
		return n, err
	}
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.SetWriteDeadline(t); err != nil {
		return err
	}
	return c.SetReadDeadline(t)
}
