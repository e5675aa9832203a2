package model

// Connect return codes.
const (
	Accepted = iota
	RefusedProtocolVersion
	RefusedIdentifierRejected
	RefusedServerUnavailable
	RefusedBadUsernameOrPassword
	RefusedNotAuthorized
)

var refusedReasons = [...]string{
	RefusedProtocolVersion:       "unacceptable protocol version",
	RefusedIdentifierRejected:    "identifier rejected",
	RefusedServerUnavailable:     "server unavailable",
	RefusedBadUsernameOrPassword: "bad user name or password",
	RefusedNotAuthorized:         "not authorized",
}

// Connack is the server's answer to Connect.
type Connack struct {
	RefusedReason  string // empty when accepted
	ReturnCode     byte
	SessionPresent bool
	Accepted       bool
}

func (*Connack) Type() byte { return CONNACK }
func (*Connack) packet()    {}

func (*Connack) Encode() ([]byte, error) {
	return nil, ErrNotSupported
}

func DecodeConnack(buf []byte) (*Connack, int, error) {
	start, end, err := fixedHeader(buf, CONNACK, 0xFF)
	if err != nil {
		return nil, 0, err
	}
	if end-start != 2 {
		return nil, 0, ErrMalformedPacket
	}

	if buf[start]&0xFE != 0 { // [MQTT-3.2.2-1]
		return nil, 0, ErrMalformedPacket
	}

	rc := buf[start+1]
	if rc > RefusedNotAuthorized {
		return nil, 0, ErrInvalidReturnCode
	}

	return &Connack{
		SessionPresent: buf[start]&0x01 == 1,
		Accepted:       rc == Accepted,
		ReturnCode:     rc,
		RefusedReason:  refusedReasons[rc],
	}, end, nil
}
