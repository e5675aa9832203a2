package model

// MaxRemainingLength is the largest value four length bytes can hold.
const MaxRemainingLength = 268435455

// EncodeLength appends l in the remaining length encoding to packet.
func EncodeLength(packet []byte, l int) ([]byte, error) {
	if l < 0 || l > MaxRemainingLength {
		return packet, ErrRemainingLengthTooLarge
	}

	for {
		eb := l % 128
		l /= 128
		if l > 0 {
			eb |= 128
		}
		packet = append(packet, byte(eb))
		if l <= 0 {
			return packet, nil
		}
	}
}

// DecodeLength reads the remaining length that starts at buf[1].
// It returns the length and the index of the first byte after the field.
func DecodeLength(buf []byte) (int, int, error) {
	var l, mul int = 0, 1
	for i := 1; ; i++ {
		if i > 4 {
			return 0, 0, ErrMalformedRemainingLength
		}
		if i >= len(buf) {
			return 0, 0, ErrIncomplete
		}

		b := buf[i]
		l += int(b&127) * mul
		if b&128 == 0 {
			return l, i + 1, nil
		}
		mul *= 128
	}
}

// LengthToNumberOfVariableLengthBytes returns the encoded size of l.
func LengthToNumberOfVariableLengthBytes(l int) int {
	switch {
	case l < 128:
		return 1
	case l < 16384:
		return 2
	case l < 2097152:
		return 3
	default:
		return 4
	}
}

// insertRemainingLength splices the remaining length of a built packet
// in after its first byte. b holds the fixed header byte followed by the body.
func insertRemainingLength(b []byte) ([]byte, error) {
	rl := len(b) - 1
	if rl > MaxRemainingLength {
		return nil, ErrRemainingLengthTooLarge
	}

	n := LengthToNumberOfVariableLengthBytes(rl)
	out := make([]byte, 1, 1+n+rl)
	out[0] = b[0]
	out, _ = EncodeLength(out, rl)
	return append(out, b[1:]...), nil
}

// fixedHeader validates the first byte of buf against want under mask,
// and returns the bounds of the packet body.
func fixedHeader(buf []byte, want, mask byte) (start, end int, err error) {
	if len(buf) == 0 {
		return 0, 0, ErrIncomplete
	}
	if buf[0]&0xF0 != want&0xF0 {
		return 0, 0, ErrUnknownPacketType
	}
	if buf[0]&mask != want { // [MQTT-2.2.2-1, 2-2]
		return 0, 0, ErrInvalidFlags
	}

	rl, start, err := DecodeLength(buf)
	if err != nil {
		return 0, 0, err
	}

	end = start + rl
	if len(buf) < end {
		return 0, 0, ErrIncomplete
	}
	return start, end, nil
}
