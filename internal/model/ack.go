package model

// Acknowledgments that carry only a packet identifier.
type (
	Puback   struct{ PacketID uint16 }
	Pubrec   struct{ PacketID uint16 }
	Pubrel   struct{ PacketID uint16 }
	Pubcomp  struct{ PacketID uint16 }
	Unsuback struct{ PacketID uint16 }
)

func (*Puback) Type() byte   { return PUBACK }
func (*Pubrec) Type() byte   { return PUBREC }
func (*Pubrel) Type() byte   { return PUBREL }
func (*Pubcomp) Type() byte  { return PUBCOMP }
func (*Unsuback) Type() byte { return UNSUBACK }

func (*Puback) packet()   {}
func (*Pubrec) packet()   {}
func (*Pubrel) packet()   {}
func (*Pubcomp) packet()  {}
func (*Unsuback) packet() {}

func (p *Puback) Encode() ([]byte, error)  { return encodeAck(PUBACK, p.PacketID), nil }
func (p *Pubrec) Encode() ([]byte, error)  { return encodeAck(PUBREC, p.PacketID), nil }
func (p *Pubrel) Encode() ([]byte, error)  { return encodeAck(PUBRELSend, p.PacketID), nil }
func (p *Pubcomp) Encode() ([]byte, error) { return encodeAck(PUBCOMP, p.PacketID), nil }

func (*Unsuback) Encode() ([]byte, error) {
	return nil, ErrNotSupported
}

func DecodePuback(buf []byte) (*Puback, int, error) {
	id, n, err := decodeAck(buf, PUBACK)
	if err != nil {
		return nil, 0, err
	}
	return &Puback{PacketID: id}, n, nil
}

func DecodePubrec(buf []byte) (*Pubrec, int, error) {
	id, n, err := decodeAck(buf, PUBREC)
	if err != nil {
		return nil, 0, err
	}
	return &Pubrec{PacketID: id}, n, nil
}

func DecodePubrel(buf []byte) (*Pubrel, int, error) {
	id, n, err := decodeAck(buf, PUBRELSend)
	if err != nil {
		return nil, 0, err
	}
	return &Pubrel{PacketID: id}, n, nil
}

func DecodePubcomp(buf []byte) (*Pubcomp, int, error) {
	id, n, err := decodeAck(buf, PUBCOMP)
	if err != nil {
		return nil, 0, err
	}
	return &Pubcomp{PacketID: id}, n, nil
}

func DecodeUnsuback(buf []byte) (*Unsuback, int, error) {
	id, n, err := decodeAck(buf, UNSUBACK)
	if err != nil {
		return nil, 0, err
	}
	return &Unsuback{PacketID: id}, n, nil
}

func encodeAck(h byte, id uint16) []byte {
	return []byte{h, 2, byte(id >> 8), byte(id)}
}

func decodeAck(buf []byte, h byte) (uint16, int, error) {
	start, end, err := fixedHeader(buf, h, 0xFF)
	if err != nil {
		return 0, 0, err
	}
	if end-start != 2 {
		return 0, 0, ErrMalformedPacket
	}
	id, _, err := readUint16(buf, start)
	return id, end, err
}
