package mqttc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/RoanBrand/mqttc/internal/model"
)

// Subscribe sends SUBSCRIBE for filter and blocks until the server's SUBACK.
// Messages arriving before the SUBACK are handled as usual.
func (c *Client) Subscribe(ctx context.Context, filter string, qos model.QoS) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if filter == "" { // [MQTT-4.7.3-1]
		return ErrEmptyTopic
	}
	if err := model.CheckUTF8([]byte(filter), false); err != nil {
		return err
	}

	s, err := model.NewSubscribe(c.packetIDs(), model.Subscription{Filter: filter, QoS: qos})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"ClientId": c.ClientID,
		"topic":    filter,
		"QoS":      qos,
	}).Info("Subscribe topic")

	stop := c.cancelOnDone(ctx)
	defer stop()

	if err = c.writePacket(s); err != nil {
		return err
	}

	for {
		p, err := c.readPacket()
		if err != nil {
			return c.readError(ctx, err)
		}

		if sa, ok := p.(*model.Suback); ok {
			if sa.PacketID != s.PacketID {
				return fmt.Errorf("%w: sent %d, got %d", ErrSubackMismatch, s.PacketID, sa.PacketID)
			}
			if sa.Failure {
				return fmt.Errorf("%w: %s", ErrSubscriptionRefused, filter)
			}

			c.filters = append(c.filters, filter)
			log.WithFields(log.Fields{
				"ClientId": c.ClientID,
				"topic":    filter,
				"QoS":      sa.GrantedQoS,
			}).Debug("Subscription granted")
			return nil
		}

		if err = c.process(p); err != nil {
			return err
		}
	}
}

// Listen receives and delivers messages until ctx is cancelled or the session fails.
// Cancellation unsubscribes from all filters and stops once the server's UNSUBACK
// is handled, or after ShutdownGrace without one. The client is disconnected
// when Listen returns.
func (c *Client) Listen(ctx context.Context) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	// Built here, so the shutdown goroutine never draws identifiers.
	var unsub *model.Unsubscribe
	if len(c.filters) > 0 {
		var err error
		if unsub, err = model.NewUnsubscribe(c.packetIDs(), c.filters...); err != nil {
			c.Disconnect()
			return err
		}
	}

	var stopping atomic.Bool
	helpers, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(2)
	go c.startPinger(helpers, &wg)
	go func() {
		defer wg.Done()
		select {
		case <-helpers.Done():
			return
		case <-ctx.Done():
		}

		log.WithField("ClientId", c.ClientID).Info("Shutting down")
		stopping.Store(true)

		if unsub == nil {
			c.conn.SetReadDeadline(aLongTimeAgo)
			return
		}
		if err := c.writePacket(unsub); err != nil {
			log.WithFields(log.Fields{
				"ClientId": c.ClientID,
				"err":      err,
			}).Error("Unable to send UNSUBSCRIBE")
			c.conn.SetReadDeadline(aLongTimeAgo)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.ShutdownGrace))
	}()

	err := c.receive(&stopping, unsub)
	cancel()
	wg.Wait()

	if dErr := c.Disconnect(); err == nil {
		err = dErr
	}
	return err
}

// receive is the only reader of the connection while listening.
// Replies owed for a packet are sent before stopping is considered.
func (c *Client) receive(stopping *atomic.Bool, unsub *model.Unsubscribe) error {
	for {
		p, err := c.readPacket()
		if err != nil {
			if stopping.Load() && isTimeout(err) {
				return nil
			}
			return c.readError(context.Background(), err)
		}

		if err = c.process(p); err != nil {
			return err
		}

		if stopping.Load() && unsub != nil {
			if ua, ok := p.(*model.Unsuback); ok && ua.PacketID == unsub.PacketID {
				return nil
			}
		}
	}
}

// startPinger keeps the session alive with PINGREQ every PingInterval.
func (c *Client) startPinger(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	t := time.NewTicker(c.PingInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.writePacket(&model.Pingreq{}); err != nil {
				if !errors.Is(err, net.ErrClosed) {
					log.WithFields(log.Fields{
						"ClientId": c.ClientID,
						"err":      err,
					}).Error("Unable to send PINGREQ")
				}
				return
			}
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
