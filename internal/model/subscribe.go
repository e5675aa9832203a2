package model

// SubackFailure is the Suback return code for a refused subscription.
const SubackFailure = 0x80

// Subscription is a topic filter with its requested QoS.
type Subscription struct {
	Filter string
	QoS    QoS
}

type Subscribe struct {
	Subscriptions []Subscription
	PacketID      uint16
}

type Unsubscribe struct {
	Filters  []string
	PacketID uint16
}

// Suback answers a Subscribe with a single filter.
type Suback struct {
	PacketID   uint16
	GrantedQoS QoS // meaningless when Failure
	Failure    bool
}

// NewSubscribe builds a Subscribe with a fresh packet identifier.
func NewSubscribe(ids IDGenerator, subs ...Subscription) (*Subscribe, error) {
	id, err := nonZeroID(ids)
	if err != nil {
		return nil, err
	}
	return &Subscribe{Subscriptions: subs, PacketID: id}, nil
}

// NewUnsubscribe builds an Unsubscribe with a fresh packet identifier.
func NewUnsubscribe(ids IDGenerator, filters ...string) (*Unsubscribe, error) {
	id, err := nonZeroID(ids)
	if err != nil {
		return nil, err
	}
	return &Unsubscribe{Filters: filters, PacketID: id}, nil
}

func (*Subscribe) Type() byte   { return SUBSCRIBE }
func (*Unsubscribe) Type() byte { return UNSUBSCRIBE }
func (*Suback) Type() byte      { return SUBACK }

func (*Subscribe) packet()   {}
func (*Unsubscribe) packet() {}
func (*Suback) packet()      {}

func (s *Subscribe) Encode() ([]byte, error) {
	if len(s.Subscriptions) == 0 { // [MQTT-3.8.3-3]
		return nil, ErrNoFilters
	}
	if s.PacketID == 0 {
		return nil, ErrMissingPacketID
	}

	b := make([]byte, 0, 8+len(s.Subscriptions)*16)
	b = append(b, SUBSCRIBESend)
	b = appendUint16(b, s.PacketID)

	var err error
	for _, sub := range s.Subscriptions {
		if sub.QoS > ExactlyOnce {
			return nil, ErrInvalidQoS
		}
		if b, err = appendString(b, sub.Filter); err != nil {
			return nil, err
		}
		b = append(b, byte(sub.QoS))
	}

	return insertRemainingLength(b)
}

func (u *Unsubscribe) Encode() ([]byte, error) {
	if len(u.Filters) == 0 { // [MQTT-3.10.3-2]
		return nil, ErrNoFilters
	}
	if u.PacketID == 0 {
		return nil, ErrMissingPacketID
	}

	b := make([]byte, 0, 8+len(u.Filters)*16)
	b = append(b, UNSUBSCRIBESend)
	b = appendUint16(b, u.PacketID)

	var err error
	for _, f := range u.Filters {
		if b, err = appendString(b, f); err != nil {
			return nil, err
		}
	}

	return insertRemainingLength(b)
}

func (*Suback) Encode() ([]byte, error) {
	return nil, ErrNotSupported
}

func DecodeSuback(buf []byte) (*Suback, int, error) {
	start, end, err := fixedHeader(buf, SUBACK, 0xFF)
	if err != nil {
		return nil, 0, err
	}
	if end-start != 3 {
		return nil, 0, ErrMalformedPacket
	}

	id, i, _ := readUint16(buf, start)
	s := Suback{PacketID: id}

	switch rc := buf[i]; rc {
	case SubackFailure:
		s.Failure = true
	default:
		if s.GrantedQoS, err = ParseQoS(rc); err != nil {
			return nil, 0, ErrInvalidReturnCode
		}
	}

	return &s, end, nil
}

// DecodeSubscribe is only needed by servers.
func DecodeSubscribe([]byte) (*Subscribe, int, error) {
	return nil, 0, ErrNotSupported
}

// DecodeUnsubscribe is only needed by servers.
func DecodeUnsubscribe([]byte) (*Unsubscribe, int, error) {
	return nil, 0, ErrNotSupported
}
