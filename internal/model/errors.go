package model

import "errors"

var (
	ErrIncomplete               = errors.New("malformed packet: buffer ends before packet does")
	ErrUnknownPacketType        = errors.New("malformed packet: unknown control packet type")
	ErrInvalidFlags             = errors.New("malformed packet: invalid fixed header flags")
	ErrMalformedRemainingLength = errors.New("malformed packet: remaining length exceeds 4 bytes")
	ErrRemainingLengthTooLarge  = errors.New("remaining length exceeds 268435455")
	ErrMalformedPacket          = errors.New("malformed packet: length does not match contents")
	ErrInvalidQoS               = errors.New("malformed packet: invalid QoS value")
	ErrInvalidReturnCode        = errors.New("malformed packet: invalid return code")
	ErrInvalidUTF8              = errors.New("malformed packet: invalid UTF-8 string")
	ErrContainsWildcards        = errors.New("topic name contains wildcards")
	ErrStringTooLong            = errors.New("string exceeds 65535 bytes")
	ErrMissingPacketID          = errors.New("packet identifier required for QoS > 0")
	ErrNoFilters                = errors.New("at least one topic filter required")
	ErrNotSupported             = errors.New("not supported in client role")
)
