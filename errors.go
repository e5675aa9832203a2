package mqttc

import (
	"errors"
	"strconv"

	"github.com/RoanBrand/mqttc/internal/model"
)

var (
	ErrUnknownPacketID     = errors.New("packet identifier not awaiting acknowledgment")
	ErrHeldMessageMissing  = errors.New("no held QoS 2 message for PUBREL")
	ErrSubackMismatch      = errors.New("SUBACK packet identifier does not match SUBSCRIBE")
	ErrSubscriptionRefused = errors.New("subscription refused by server")
	ErrUnexpectedPacket    = errors.New("unexpected packet")
	ErrEmptyTopic          = errors.New("topic must not be empty")
	ErrNotConnected        = errors.New("not connected")
)

// RefusedError is returned when the server answers CONNECT with a non zero return code.
type RefusedError struct {
	Reason string
	Code   byte
}

func (e *RefusedError) Error() string {
	return "connection refused: " + e.Reason
}

// InconsistencyError reports an acknowledgment for a packet identifier
// that is not awaiting one.
type InconsistencyError struct {
	PacketType byte
	PacketID   uint16
}

func (e *InconsistencyError) Error() string {
	return "got " + model.Name(e.PacketType) + " packet for none existing packet " + strconv.Itoa(int(e.PacketID))
}

func (e *InconsistencyError) Unwrap() error {
	return ErrUnknownPacketID
}

// reportable errors are logged, and the session carries on.
func reportable(err error) bool {
	return errors.Is(err, ErrUnknownPacketID) || errors.Is(err, ErrHeldMessageMissing)
}
