// Package mqttc is an MQTT 3.1.1 client that publishes or subscribes
// with QoS 0, 1 and 2 delivery.
package mqttc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/RoanBrand/mqttc/internal/config"
	"github.com/RoanBrand/mqttc/internal/model"
	"github.com/RoanBrand/mqttc/internal/queue"
)

var aLongTimeAgo = time.Unix(1, 0) // used for cancellation

// Client is a session with one MQTT server.
// Set the Config, then call Connect.
type Client struct {
	config.Config

	// Sink receives application messages. Defaults to printing them on stdout.
	Sink Deliverer

	// IDs generates client and packet identifiers. Defaults to a clock seeded random source.
	IDs model.IDGenerator

	dialer func(context.Context, *config.Config) (net.Conn, error)

	conn     net.Conn
	rx       *bufio.Reader
	tx       *bufio.Writer
	txLock   sync.Mutex
	inflight *inflight
	filters  []string
}

// Connect opens the connection, performs the CONNECT handshake and handles
// any packets the server sent along with its CONNACK.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Sink == nil {
		c.Sink = &Printer{W: os.Stdout}
	}
	if c.IDs == nil {
		c.IDs = model.NewRandomIDs(0)
	}

	cp, err := model.NewConnect(model.Connect{
		ClientID:     c.ClientID,
		Username:     c.Username,
		Password:     c.Password,
		UsernameFlag: c.Username != "",
		PasswordFlag: c.Password != "",
		KeepAlive:    c.KeepAlive,
		CleanSession: c.CleanSession,
		WillFlag:     c.Will.Enabled,
		WillTopic:    c.Will.Topic,
		WillMessage:  c.Will.Message,
		WillQoS:      model.QoS(c.Will.QoS),
		WillRetain:   c.Will.Retain,
	}, c.IDs)
	if err != nil {
		return err
	}

	if c.dialer == nil {
		c.dialer = dial
	}
	conn, err := c.dialer(ctx, &c.Config)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", c.Broker, err)
	}

	c.conn = conn
	c.rx, c.tx = bufio.NewReader(conn), bufio.NewWriter(conn)
	c.inflight = newInflight()
	c.ClientID = cp.ClientID

	if err = c.connect(ctx, cp); err != nil {
		c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) connect(ctx context.Context, cp *model.Connect) error {
	stop := c.cancelOnDone(ctx)
	defer stop()

	if err := c.writePacket(cp); err != nil {
		return err
	}

	p, err := c.readPacket()
	if err != nil {
		return c.readError(ctx, err)
	}
	ca, ok := p.(*model.Connack)
	if !ok { // [MQTT-3.2.0-1]
		return fmt.Errorf("%w: expected CONNACK, got %s", ErrUnexpectedPacket, model.Name(p.Type()))
	}
	if !ca.Accepted {
		return &RefusedError{Code: ca.ReturnCode, Reason: ca.RefusedReason}
	}

	log.WithFields(log.Fields{
		"ClientId":       c.ClientID,
		"sessionPresent": ca.SessionPresent,
	}).Info("Connected to ", c.Broker)

	// Server may have sent queued packets right behind CONNACK.
	for c.rx.Buffered() > 0 {
		if p, err = c.readPacket(); err != nil {
			return c.readError(ctx, err)
		}
		if err = c.process(p); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect sends DISCONNECT and closes the connection.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return ErrNotConnected
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		c.inflight.forEach(func(awaiting byte, i *queue.Item) {
			log.WithFields(log.Fields{
				"ClientId": c.ClientID,
				"packetID": i.PId,
				"awaiting": model.Name(awaiting),
				"age":      time.Since(i.Added),
			}).Debug("Disconnecting with unfinished QoS 1&2 flow")
		})
	}
	c.inflight.reset()

	err := c.writePacket(&model.Disconnect{})
	if cErr := c.conn.Close(); err == nil {
		err = cErr
	}
	c.conn, c.filters = nil, nil

	log.WithField("ClientId", c.ClientID).Info("Exit")
	return err
}

// process runs p through the delivery state machine, delivers any released
// message and sends the reply.
func (c *Client) process(p model.Packet) error {
	reply, msg, err := c.inflight.handle(p)
	if err != nil {
		if !reportable(err) {
			return err
		}

		entry := log.WithFields(log.Fields{
			"ClientId": c.ClientID,
			"err":      err,
		})
		if errors.Is(err, ErrHeldMessageMissing) {
			entry.Warn("Got PUBREL packet without held message")
		} else {
			entry.Error("Got acknowledgment for none existing packet")
		}
	}

	if msg != nil {
		if err := c.Sink.Deliver(msg.Topic, msg.Payload); err != nil {
			log.WithFields(log.Fields{
				"ClientId": c.ClientID,
				"topic":    msg.Topic,
				"err":      err,
			}).Error("Unable to deliver message")
		}
	}

	if reply != nil {
		return c.writePacket(reply)
	}
	return nil
}

// writePacket serializes writers, so every packet reaches the connection whole.
func (c *Client) writePacket(p model.Packet) error {
	b, err := p.Encode()
	if err != nil {
		return err
	}

	c.txLock.Lock()
	defer c.txLock.Unlock()

	if _, err = c.tx.Write(b); err != nil {
		return err
	}
	if err = c.tx.Flush(); err != nil {
		return err
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithFields(log.Fields{
			"ClientId": c.ClientID,
			"packet":   model.Name(p.Type()),
		}).Debug("Sent packet")
	}
	return nil
}

func (c *Client) readPacket() (model.Packet, error) {
	p, err := model.ReadPacket(c.rx)
	if err != nil {
		return nil, err
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithFields(log.Fields{
			"ClientId": c.ClientID,
			"packet":   model.Name(p.Type()),
		}).Debug("Got packet")
	}
	return p, nil
}

// cancelOnDone unblocks reads when ctx is done. Call the returned func to stop watching.
func (c *Client) cancelOnDone(ctx context.Context) func() bool {
	conn := c.conn
	return context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(aLongTimeAgo)
	})
}

// readError prefers the context error when cancellation caused the failed read.
func (c *Client) readError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("server closed connection: %w", err)
	}
	return err
}

// packetIDs draws identifiers that no pending flow uses.
func (c *Client) packetIDs() model.IDGenerator {
	return freeIDs{ids: c.IDs, f: c.inflight}
}
