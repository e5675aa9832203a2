package mqttc

import (
	"errors"
	"fmt"
	"io"
)

// Deliverer receives application messages once their QoS flow allows it.
type Deliverer interface {
	Deliver(topic string, payload []byte) error
}

// Printer writes every message payload to W.
type Printer struct {
	W io.Writer
}

func (p *Printer) Deliver(topic string, payload []byte) error {
	_, err := fmt.Fprintf(p.W, "Received message=%s\n", payload)
	return err
}

// Tee delivers to every Deliverer, and returns all their errors joined.
type Tee []Deliverer

func (t Tee) Deliver(topic string, payload []byte) error {
	var errs []error
	for _, d := range t {
		if err := d.Deliver(topic, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(topic string, payload []byte) error

func (f DelivererFunc) Deliver(topic string, payload []byte) error {
	return f(topic, payload)
}
