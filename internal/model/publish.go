package model

// Publish carries an application message in either direction.
type Publish struct {
	Topic    string
	Payload  []byte
	PacketID uint16 // 0 when QoS is 0
	QoS      QoS
	Dup      bool
	Retain   bool
}

// NewPublish builds a Publish, drawing a packet identifier from ids when qos > 0.
func NewPublish(topic string, payload []byte, qos QoS, retain bool, ids IDGenerator) (*Publish, error) {
	p := Publish{Topic: topic, Payload: payload, QoS: qos, Retain: retain}
	if qos > AtMostOnce {
		var err error
		if p.PacketID, err = nonZeroID(ids); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (*Publish) Type() byte { return PUBLISH }
func (*Publish) packet()    {}

func (p *Publish) Encode() ([]byte, error) {
	if p.QoS > ExactlyOnce {
		return nil, ErrInvalidQoS
	}
	if p.QoS > AtMostOnce && p.PacketID == 0 {
		return nil, ErrMissingPacketID
	}

	h := PUBLISH | byte(p.QoS)<<1
	if p.Dup {
		h |= 0x08
	}
	if p.Retain {
		h |= 0x01
	}

	b := make([]byte, 0, 5+len(p.Topic)+len(p.Payload))
	b = append(b, h)

	var err error
	if b, err = appendString(b, p.Topic); err != nil {
		return nil, err
	}
	if p.QoS > AtMostOnce {
		b = appendUint16(b, p.PacketID)
	}
	b = append(b, p.Payload...)

	return insertRemainingLength(b)
}

func DecodePublish(buf []byte) (*Publish, int, error) {
	start, end, err := fixedHeader(buf, PUBLISH, 0xF0)
	if err != nil {
		return nil, 0, err
	}

	flags := buf[0]
	qos, err := ParseQoS((flags & 0x06) >> 1) // [MQTT-3.3.1-4]
	if err != nil {
		return nil, 0, err
	}
	p := Publish{QoS: qos, Dup: flags&0x08 > 0, Retain: flags&0x01 > 0}

	body := buf[:end]
	i := start
	if p.Topic, i, err = readString(body, i); err != nil {
		return nil, 0, err
	}
	if err = CheckUTF8([]byte(p.Topic), true); err != nil {
		return nil, 0, err
	}

	if qos > AtMostOnce {
		if p.PacketID, i, err = readUint16(body, i); err != nil {
			return nil, 0, err
		}
	}

	p.Payload = make([]byte, end-i)
	copy(p.Payload, body[i:])
	return &p, end, nil
}
