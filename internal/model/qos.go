package model

import "strconv"

// QoS is the delivery guarantee of a message.
type QoS byte

const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
	ExactlyOnce QoS = 2
)

// ParseQoS maps the 2-bit wire value to a QoS. 3 is an error, not clamped.
func ParseQoS(b byte) (QoS, error) {
	if b > 2 {
		return 0, ErrInvalidQoS
	}
	return QoS(b), nil
}

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at most once"
	case AtLeastOnce:
		return "at least once"
	case ExactlyOnce:
		return "exactly once"
	}
	return "invalid QoS " + strconv.Itoa(int(q))
}
