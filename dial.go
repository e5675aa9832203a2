package mqttc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"os"

	"github.com/RoanBrand/mqttc/internal/config"
	"github.com/RoanBrand/mqttc/internal/websocket"
)

// dial opens the byte stream to the broker named by the validated c.Broker URL.
func dial(ctx context.Context, c *config.Config) (net.Conn, error) {
	u, err := url.Parse(c.Broker)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "tcp", "mqtt":
		var d net.Dialer
		return d.DialContext(ctx, "tcp", u.Host)
	case "tls", "ssl", "mqtts":
		tc, err := tlsConfig(c, u.Hostname())
		if err != nil {
			return nil, err
		}
		d := tls.Dialer{Config: tc}
		return d.DialContext(ctx, "tcp", u.Host)
	case "ws":
		return websocket.Dial(ctx, u.String(), nil)
	case "wss":
		tc, err := tlsConfig(c, u.Hostname())
		if err != nil {
			return nil, err
		}
		return websocket.Dial(ctx, u.String(), tc)
	}

	return nil, errors.New("unsupported broker scheme: " + u.Scheme)
}

func tlsConfig(c *config.Config, host string) (*tls.Config, error) {
	tc := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: c.TLS.Insecure,
		MinVersion:         tls.VersionTLS12,
	}

	if c.TLS.CAFile != "" {
		pem, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("no certificates found in " + c.TLS.CAFile)
		}
		tc.RootCAs = pool
	}

	if c.TLS.Cert != "" {
		cert, err := tls.LoadX509KeyPair(c.TLS.Cert, c.TLS.Key)
		if err != nil {
			return nil, err
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	return tc, nil
}
