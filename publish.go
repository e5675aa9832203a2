package mqttc

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/RoanBrand/mqttc/internal/model"
	"github.com/RoanBrand/mqttc/internal/queue"
)

// Publish sends an application message and blocks until its QoS flow is complete:
// on return a QoS 1 message was acknowledged, a QoS 2 message was released and completed.
// There is no retransmission; cancel ctx to give up waiting.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos model.QoS, retain bool) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if topic == "" { // [MQTT-4.7.3-1]
		return ErrEmptyTopic
	}
	if err := model.CheckUTF8([]byte(topic), true); err != nil {
		return err
	}
	if qos > model.ExactlyOnce {
		return model.ErrInvalidQoS
	}

	p, err := model.NewPublish(topic, payload, qos, retain, c.packetIDs())
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"ClientId": c.ClientID,
		"topic":    topic,
		"QoS":      qos,
		"packetID": p.PacketID,
	}).Info("Publish message")

	stop := c.cancelOnDone(ctx)
	defer stop()

	switch qos {
	case model.AtLeastOnce:
		c.inflight.pubacks.Add(queue.NewItem(p.PacketID, p))
		if err := c.writePacket(p); err != nil {
			return err
		}
		return c.await(ctx, model.PUBACK, p.PacketID, c.inflight.pubacks)

	case model.ExactlyOnce:
		c.inflight.pubrecs.Add(queue.NewItem(p.PacketID, p))
		if err := c.writePacket(p); err != nil {
			return err
		}
		// PUBREC handling sends PUBREL and moves the flow on to awaiting PUBCOMP.
		if err := c.await(ctx, model.PUBREC, p.PacketID, c.inflight.pubrecs); err != nil {
			return err
		}
		return c.await(ctx, model.PUBCOMP, p.PacketID, c.inflight.pubcomps)
	}

	return c.writePacket(p)
}

// await handles inbound packets until id leaves table t.
// An acknowledgment of type want for another packet identifier ends the wait with an error.
func (c *Client) await(ctx context.Context, want byte, id uint16, t *queue.Lookup) error {
	for t.Present(id) {
		p, err := c.readPacket()
		if err != nil {
			return c.readError(ctx, err)
		}

		if p.Type() == want {
			if got, _ := model.ID(p); got != id {
				return &InconsistencyError{PacketType: want, PacketID: got}
			}
		}

		if err = c.process(p); err != nil {
			return err
		}
	}
	return nil
}
