package model

import (
	"errors"
	"strconv"
)

const (
	protocolName  = "MQTT"
	protocolLevel = 4 // 3.1.1
)

var (
	ErrPasswordWithoutUsername = errors.New("password set without username")
	ErrIncompleteWill          = errors.New("will flag set without will topic and message")
	ErrWillOptionsWithoutWill  = errors.New("will QoS or will retain set without will flag")
)

// Connect opens a session. Optional fields are present when their flag is set.
type Connect struct {
	ClientID    string
	Username    string
	Password    string
	WillTopic   string
	WillMessage string

	KeepAlive uint16
	WillQoS   QoS

	UsernameFlag bool
	PasswordFlag bool
	WillRetain   bool
	WillFlag     bool
	CleanSession bool
}

// NewConnect validates c and fills in a generated client identifier when it has none.
func NewConnect(c Connect, ids IDGenerator) (*Connect, error) {
	if c.PasswordFlag && !c.UsernameFlag { // [MQTT-3.1.2-22]
		return nil, ErrPasswordWithoutUsername
	}
	if c.WillFlag && (c.WillTopic == "" || c.WillMessage == "") {
		return nil, ErrIncompleteWill
	}
	if !c.WillFlag && (c.WillQoS != AtMostOnce || c.WillRetain) { // [MQTT-3.1.2-13, 3.1.2-15]
		return nil, ErrWillOptionsWithoutWill
	}
	if c.WillQoS > ExactlyOnce {
		return nil, ErrInvalidQoS
	}
	if c.ClientID == "" {
		c.ClientID = "mqttclient" + strconv.Itoa(int(ids.NextID()))
	}
	return &c, nil
}

func (*Connect) Type() byte { return CONNECT }
func (*Connect) packet()    {}

// Flags returns the connect flags byte.
func (c *Connect) Flags() byte {
	var f byte
	if c.UsernameFlag {
		f |= 0x80
	}
	if c.PasswordFlag {
		f |= 0x40
	}
	if c.WillFlag {
		f |= 0x04
		f |= byte(c.WillQoS&3) << 3
		if c.WillRetain {
			f |= 0x20
		}
	}
	if c.CleanSession {
		f |= 0x02
	}
	return f
}

func (c *Connect) Encode() ([]byte, error) {
	b := make([]byte, 0, 16+len(c.ClientID)+len(c.WillTopic)+len(c.WillMessage)+len(c.Username)+len(c.Password))
	b = append(b, CONNECT)
	b, _ = appendString(b, protocolName)
	b = append(b, protocolLevel, c.Flags())
	b = appendUint16(b, c.KeepAlive)

	var err error
	if b, err = appendString(b, c.ClientID); err != nil {
		return nil, err
	}
	if c.WillFlag {
		if b, err = appendString(b, c.WillTopic); err != nil {
			return nil, err
		}
		if b, err = appendString(b, c.WillMessage); err != nil {
			return nil, err
		}
	}
	if c.UsernameFlag {
		if b, err = appendString(b, c.Username); err != nil {
			return nil, err
		}
	}
	if c.PasswordFlag {
		if b, err = appendString(b, c.Password); err != nil {
			return nil, err
		}
	}

	return insertRemainingLength(b)
}

// DecodeConnect is only needed by servers.
func DecodeConnect([]byte) (*Connect, int, error) {
	return nil, 0, ErrNotSupported
}
