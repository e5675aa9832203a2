package model

// Packets without variable header or payload.
type (
	Pingreq    struct{}
	Pingresp   struct{}
	Disconnect struct{}
)

func (*Pingreq) Type() byte    { return PINGREQ }
func (*Pingresp) Type() byte   { return PINGRESP }
func (*Disconnect) Type() byte { return DISCONNECT }

func (*Pingreq) packet()    {}
func (*Pingresp) packet()   {}
func (*Disconnect) packet() {}

func (*Pingreq) Encode() ([]byte, error)    { return []byte{PINGREQ, 0}, nil }
func (*Disconnect) Encode() ([]byte, error) { return []byte{DISCONNECT, 0}, nil }

func (*Pingresp) Encode() ([]byte, error) {
	return nil, ErrNotSupported
}

func DecodePingresp(buf []byte) (*Pingresp, int, error) {
	start, end, err := fixedHeader(buf, PINGRESP, 0xFF)
	if err != nil {
		return nil, 0, err
	}
	if end != start {
		return nil, 0, ErrMalformedPacket
	}
	return &Pingresp{}, end, nil
}

// DecodePingreq is only needed by servers.
func DecodePingreq([]byte) (*Pingreq, int, error) {
	return nil, 0, ErrNotSupported
}

// DecodeDisconnect is only needed by servers.
func DecodeDisconnect([]byte) (*Disconnect, int, error) {
	return nil, 0, ErrNotSupported
}
