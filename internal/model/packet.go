package model

import (
	"bufio"
	"io"
)

// Control Packets
const (
	CONNECT     = 1 << 4
	CONNACK     = 2 << 4
	PUBLISH     = 3 << 4
	PUBACK      = 4 << 4
	PUBREC      = 5 << 4
	PUBREL      = 6 << 4
	PUBCOMP     = 7 << 4
	SUBSCRIBE   = 8 << 4
	SUBACK      = 9 << 4
	UNSUBSCRIBE = 10 << 4
	UNSUBACK    = 11 << 4
	PINGREQ     = 12 << 4
	PINGRESP    = 13 << 4
	DISCONNECT  = 14 << 4

	// Fixed header bytes for packets with reserved flags 0010.
	PUBRELSend      = PUBREL | 2
	SUBSCRIBESend   = SUBSCRIBE | 2
	UNSUBSCRIBESend = UNSUBSCRIBE | 2
)

var names = [...]string{
	CONNECT >> 4:     "CONNECT",
	CONNACK >> 4:     "CONNACK",
	PUBLISH >> 4:     "PUBLISH",
	PUBACK >> 4:      "PUBACK",
	PUBREC >> 4:      "PUBREC",
	PUBREL >> 4:      "PUBREL",
	PUBCOMP >> 4:     "PUBCOMP",
	SUBSCRIBE >> 4:   "SUBSCRIBE",
	SUBACK >> 4:      "SUBACK",
	UNSUBSCRIBE >> 4: "UNSUBSCRIBE",
	UNSUBACK >> 4:    "UNSUBACK",
	PINGREQ >> 4:     "PINGREQ",
	PINGRESP >> 4:    "PINGRESP",
	DISCONNECT >> 4:  "DISCONNECT",
}

// Name returns the name of control packet type t.
func Name(t byte) string {
	if i := int(t >> 4); i < len(names) && names[i] != "" {
		return names[i]
	}
	return "UNKNOWN"
}

// ID returns the packet identifier of p, if it has one.
func ID(p Packet) (uint16, bool) {
	switch p := p.(type) {
	case *Publish:
		return p.PacketID, p.QoS > AtMostOnce
	case *Puback:
		return p.PacketID, true
	case *Pubrec:
		return p.PacketID, true
	case *Pubrel:
		return p.PacketID, true
	case *Pubcomp:
		return p.PacketID, true
	case *Subscribe:
		return p.PacketID, true
	case *Suback:
		return p.PacketID, true
	case *Unsubscribe:
		return p.PacketID, true
	case *Unsuback:
		return p.PacketID, true
	}
	return 0, false
}

// Packet is one of the fourteen MQTT 3.1.1 control packets.
// The set is closed: only types in this package implement it.
type Packet interface {
	// Type returns the control packet type, as the high nibble of the fixed header.
	Type() byte

	// Encode returns the complete wire form of the packet,
	// or ErrNotSupported if the client never sends this packet.
	Encode() ([]byte, error)

	packet()
}

// Decode decodes the packet at the start of buf, dispatching on the type nibble.
// It returns the packet and the number of bytes it occupied.
func Decode(buf []byte) (Packet, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}

	switch buf[0] & 0xF0 {
	case CONNECT:
		return as(DecodeConnect(buf))
	case CONNACK:
		return as(DecodeConnack(buf))
	case PUBLISH:
		return as(DecodePublish(buf))
	case PUBACK:
		return as(DecodePuback(buf))
	case PUBREC:
		return as(DecodePubrec(buf))
	case PUBREL:
		return as(DecodePubrel(buf))
	case PUBCOMP:
		return as(DecodePubcomp(buf))
	case SUBSCRIBE:
		return as(DecodeSubscribe(buf))
	case SUBACK:
		return as(DecodeSuback(buf))
	case UNSUBSCRIBE:
		return as(DecodeUnsubscribe(buf))
	case UNSUBACK:
		return as(DecodeUnsuback(buf))
	case PINGREQ:
		return as(DecodePingreq(buf))
	case PINGRESP:
		return as(DecodePingresp(buf))
	case DISCONNECT:
		return as(DecodeDisconnect(buf))
	}

	return nil, 0, ErrUnknownPacketType
}

// as keeps typed nil pointers out of the Packet interface.
func as[T Packet](p T, n int, err error) (Packet, int, error) {
	if err != nil {
		return nil, n, err
	}
	return p, n, nil
}

// ReadPacket reads exactly one control packet from a byte stream.
// The fixed header and remaining length are read first so that no bytes
// of the following packet are consumed.
func ReadPacket(r *bufio.Reader) (Packet, error) {
	buf := make([]byte, 1, 5)

	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	buf[0] = b

	if !knownType(b) {
		return nil, ErrUnknownPacketType
	}

	for i := 0; ; i++ {
		if i == 4 {
			return nil, ErrMalformedRemainingLength
		}
		if b, err = r.ReadByte(); err != nil {
			return nil, unexpected(err)
		}
		buf = append(buf, b)
		if b&0x80 == 0 {
			break
		}
	}

	rl, hl, err := DecodeLength(buf)
	if err != nil {
		return nil, err
	}

	full := make([]byte, hl+rl)
	copy(full, buf)
	if _, err = io.ReadFull(r, full[hl:]); err != nil {
		return nil, unexpected(err)
	}

	p, _, err := Decode(full)
	return p, err
}

func knownType(b byte) bool {
	t := b & 0xF0
	return t >= CONNECT && t <= DISCONNECT
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
