package model

import (
	"encoding/binary"
	"unicode/utf8"
)

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

// appendString writes a length prefixed UTF-8 string.
func appendString(b []byte, s string) ([]byte, error) {
	if len(s) > 65535 {
		return b, ErrStringTooLong
	}
	b = appendUint16(b, uint16(len(s)))
	return append(b, s...), nil
}

func readUint16(buf []byte, i int) (uint16, int, error) {
	if i+2 > len(buf) {
		return 0, i, ErrMalformedPacket
	}
	return binary.BigEndian.Uint16(buf[i:]), i + 2, nil
}

func readString(buf []byte, i int) (string, int, error) {
	l, i, err := readUint16(buf, i)
	if err != nil {
		return "", i, err
	}
	end := i + int(l)
	if end > len(buf) {
		return "", i, ErrMalformedPacket
	}
	if err = CheckUTF8(buf[i:end], false); err != nil {
		return "", i, err
	}
	return string(buf[i:end]), end, nil
}

// CheckUTF8 validates an MQTT UTF-8 encoded string,
// optionally rejecting topic wildcard characters.
func CheckUTF8(str []byte, checkWildCards bool) error {
	for i := 0; i < len(str); {
		if str[i] == 0 { // [MQTT-1.5.3-2]
			return ErrInvalidUTF8
		}

		if checkWildCards && (str[i] == '+' || str[i] == '#') { // [MQTT-3.3.2-2]
			return ErrContainsWildcards
		} else if str[i]&0x80 == 0 {
			i++
		} else {
			r, size := utf8.DecodeRune(str[i:])
			if r == utf8.RuneError && size == 1 { // [MQTT-1.5.3-1]
				return ErrInvalidUTF8
			}
			i += size
		}
	}
	return nil
}
