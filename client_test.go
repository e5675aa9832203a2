package mqttc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RoanBrand/mqttc/internal/config"
	"github.com/RoanBrand/mqttc/internal/model"
	"github.com/RoanBrand/mqttc/internal/queue"
)

// countingIDs yields 1, 2, 3...
type countingIDs struct {
	n uint16
}

func (c *countingIDs) NextID() uint16 {
	c.n++
	return c.n
}

type message struct {
	topic   string
	payload string
}

// fakeServer is the broker end of a net.Pipe, driven by the test goroutine.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	rx   *bufio.Reader
}

func (s *fakeServer) read() []byte {
	s.t.Helper()
	s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	h, err := s.rx.ReadByte()
	require.NoError(s.t, err)
	buf := []byte{h}
	for {
		b, err := s.rx.ReadByte()
		require.NoError(s.t, err)
		buf = append(buf, b)
		if b&0x80 == 0 {
			break
		}
	}

	rl, _, err := model.DecodeLength(buf)
	require.NoError(s.t, err)
	body := make([]byte, rl)
	_, err = io.ReadFull(s.rx, body)
	require.NoError(s.t, err)
	return append(buf, body...)
}

func (s *fakeServer) expect(exp ...byte) {
	s.t.Helper()
	require.Equal(s.t, exp, s.read())
}

func (s *fakeServer) write(b ...byte) {
	s.t.Helper()
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := s.conn.Write(b)
	require.NoError(s.t, err)
}

func newPipeClient(t *testing.T) (*Client, *fakeServer, chan message) {
	cc, sc := net.Pipe()
	t.Cleanup(func() {
		cc.Close()
		sc.Close()
	})

	msgs := make(chan message, 16)
	c := &Client{
		Sink: DelivererFunc(func(topic string, payload []byte) error {
			msgs <- message{topic, string(payload)}
			return nil
		}),
		IDs: &countingIDs{},
		dialer: func(context.Context, *config.Config) (net.Conn, error) {
			return cc, nil
		},
	}
	c.KeepAlive = 60
	c.CleanSession = true
	c.PingInterval = time.Hour
	c.ShutdownGrace = 5 * time.Second

	return c, &fakeServer{t: t, conn: sc, rx: bufio.NewReader(sc)}, msgs
}

// connected runs the CONNECT handshake, with extra sent right behind the CONNACK.
func connected(t *testing.T, extra ...byte) (*Client, *fakeServer, chan message) {
	c, s, msgs := newPipeClient(t)

	errs := make(chan error, 1)
	go func() { errs <- c.Connect(context.Background()) }()

	p := s.read()
	require.Equal(t, byte(model.CONNECT), p[0])
	s.write(append([]byte{0x20, 0x02, 0x00, 0x00}, extra...)...)

	if len(extra) == 0 {
		require.NoError(t, <-errs)
	} else {
		t.Cleanup(func() { require.NoError(t, <-errs) })
	}
	return c, s, msgs
}

func TestConnect(t *testing.T) {
	t.Parallel()

	c, s, _ := newPipeClient(t)
	errs := make(chan error, 1)
	go func() { errs <- c.Connect(context.Background()) }()

	s.expect(
		0x10, 0x17,
		0x00, 0x04, 'M', 'Q', 'T', 'T',
		0x04, 0x02,
		0x00, 0x3c,
		0x00, 0x0b, 'm', 'q', 't', 't', 'c', 'l', 'i', 'e', 'n', 't', '1',
	)
	s.write(0x20, 0x02, 0x00, 0x00)
	require.NoError(t, <-errs)
	require.Equal(t, "mqttclient1", c.ClientID)

	go func() { errs <- c.Disconnect() }()
	s.expect(0xE0, 0x00)
	require.NoError(t, <-errs)
}

func TestConnectRefused(t *testing.T) {
	t.Parallel()

	c, s, _ := newPipeClient(t)
	errs := make(chan error, 1)
	go func() { errs <- c.Connect(context.Background()) }()

	s.read()
	s.write(0x20, 0x02, 0x00, 0x05)

	err := <-errs
	var re *RefusedError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "not authorized", re.Reason)
	require.Equal(t, ErrNotConnected, c.Disconnect())
}

func TestConnectInvalidConfig(t *testing.T) {
	t.Parallel()

	c, _, _ := newPipeClient(t)
	c.Password = "secret"
	require.Error(t, c.Connect(context.Background()))
}

func TestConnectDrainsPipelinedPackets(t *testing.T) {
	t.Parallel()

	_, s, msgs := connected(t, 0x32, 0x07, 0x00, 0x01, 'q', 0x00, 0x2a, 'h', 'i')

	s.expect(0x40, 0x02, 0x00, 0x2a)
	require.Equal(t, message{"q", "hi"}, <-msgs)
}

func TestPublishQoS0(t *testing.T) {
	t.Parallel()

	c, s, _ := connected(t)
	errs := make(chan error, 1)
	go func() {
		errs <- c.Publish(context.Background(), "a/b", []byte("hello"), model.AtMostOnce, false)
	}()

	s.expect(0x30, 0x0a, 0x00, 0x03, 0x61, 0x2f, 0x62, 0x68, 0x65, 0x6c, 0x6c, 0x6f)
	require.NoError(t, <-errs)
}

func TestPublishQoS1(t *testing.T) {
	t.Parallel()

	c, s, _ := connected(t)
	errs := make(chan error, 1)
	go func() {
		errs <- c.Publish(context.Background(), "a", []byte("x"), model.AtLeastOnce, false)
	}()

	p, _, err := model.DecodePublish(s.read())
	require.NoError(t, err)
	require.Equal(t, model.AtLeastOnce, p.QoS)
	require.NotZero(t, p.PacketID)

	s.write(0x40, 0x02, byte(p.PacketID>>8), byte(p.PacketID))
	require.NoError(t, <-errs)
	require.Zero(t, c.inflight.pending())
}

func TestPublishQoS2(t *testing.T) {
	t.Parallel()

	c, s, msgs := connected(t)
	errs := make(chan error, 1)
	go func() {
		errs <- c.Publish(context.Background(), "a", []byte("x"), model.ExactlyOnce, true)
	}()

	p, _, err := model.DecodePublish(s.read())
	require.NoError(t, err)
	require.Equal(t, model.ExactlyOnce, p.QoS)
	require.True(t, p.Retain)
	hi, lo := byte(p.PacketID>>8), byte(p.PacketID)

	// unrelated traffic while waiting is still handled
	s.write(0x30, 0x04, 0x00, 0x01, 'z', '!')
	require.Equal(t, message{"z", "!"}, <-msgs)

	s.write(0x50, 0x02, hi, lo)
	s.expect(0x62, 0x02, hi, lo)
	s.write(0x70, 0x02, hi, lo)

	require.NoError(t, <-errs)
	require.Zero(t, c.inflight.pending())
}

func TestPublishAckForOtherPacket(t *testing.T) {
	t.Parallel()

	c, s, _ := connected(t)
	errs := make(chan error, 1)
	go func() {
		errs <- c.Publish(context.Background(), "a", []byte("x"), model.AtLeastOnce, false)
	}()

	p, _, err := model.DecodePublish(s.read())
	require.NoError(t, err)
	s.write(0x40, 0x02, 0xFF, byte(p.PacketID)+1)

	err = <-errs
	require.ErrorIs(t, err, ErrUnknownPacketID)
}

func TestPublishCancel(t *testing.T) {
	t.Parallel()

	c, s, _ := connected(t)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- c.Publish(ctx, "a", []byte("x"), model.AtLeastOnce, false)
	}()

	s.read()
	cancel()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("publish not cancelled")
	}
}

func TestPublishInvalidTopic(t *testing.T) {
	t.Parallel()

	c, _, _ := connected(t)
	require.ErrorIs(t, c.Publish(context.Background(), "", nil, 0, false), ErrEmptyTopic)
	require.ErrorIs(t, c.Publish(context.Background(), "a/#", nil, 0, false), model.ErrContainsWildcards)
}

func subscribed(t *testing.T) (*Client, *fakeServer, chan message) {
	c, s, msgs := connected(t)

	errs := make(chan error, 1)
	go func() { errs <- c.Subscribe(context.Background(), "a/#", model.ExactlyOnce) }()

	p := s.read()
	require.Equal(t, []byte{0x82, 0x08, p[2], p[3], 0x00, 0x03, 'a', '/', '#', 0x02}, p)
	s.write(0x90, 0x03, p[2], p[3], 0x02)
	require.NoError(t, <-errs)

	return c, s, msgs
}

func TestSubscribeMismatch(t *testing.T) {
	t.Parallel()

	c, s, _ := connected(t)
	errs := make(chan error, 1)
	go func() { errs <- c.Subscribe(context.Background(), "a", model.AtMostOnce) }()

	p := s.read()
	s.write(0x90, 0x03, p[2], p[3]+1, 0x00)
	require.ErrorIs(t, <-errs, ErrSubackMismatch)
}

func TestSubscribeRefused(t *testing.T) {
	t.Parallel()

	c, s, _ := connected(t)
	errs := make(chan error, 1)
	go func() { errs <- c.Subscribe(context.Background(), "a", model.AtMostOnce) }()

	p := s.read()
	s.write(0x90, 0x03, p[2], p[3], 0x80)
	require.ErrorIs(t, <-errs, ErrSubscriptionRefused)
}

func TestListen(t *testing.T) {
	t.Parallel()

	c, s, msgs := subscribed(t)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- c.Listen(ctx) }()

	s.write(0x30, 0x06, 0x00, 0x03, 'a', '/', '0', 'q')
	require.Equal(t, message{"a/0", "q"}, <-msgs)

	s.write(0x32, 0x08, 0x00, 0x03, 'a', '/', '1', 0x00, 0x05, 'r')
	s.expect(0x40, 0x02, 0x00, 0x05)
	require.Equal(t, message{"a/1", "r"}, <-msgs)

	s.write(0x34, 0x08, 0x00, 0x03, 'a', '/', '2', 0x00, 0x06, 's')
	s.expect(0x50, 0x02, 0x00, 0x06)
	select {
	case m := <-msgs:
		t.Fatal("QoS 2 delivered before PUBREL", m)
	default:
	}
	s.write(0x62, 0x02, 0x00, 0x06)
	s.expect(0x70, 0x02, 0x00, 0x06)
	require.Equal(t, message{"a/2", "s"}, <-msgs)

	// missing held message is only reported
	s.write(0x62, 0x02, 0x00, 0x07)
	s.expect(0x70, 0x02, 0x00, 0x07)

	s.write(0xD0, 0x00)

	cancel()
	p := s.read()
	require.Equal(t, []byte{0xA2, 0x07, p[2], p[3], 0x00, 0x03, 'a', '/', '#'}, p)
	s.write(0xB0, 0x02, p[2], p[3])
	s.expect(0xE0, 0x00)

	require.NoError(t, <-errs)
	require.Empty(t, msgs)
}

func TestListenShutdownGrace(t *testing.T) {
	t.Parallel()

	c, s, _ := subscribed(t)
	c.ShutdownGrace = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- c.Listen(ctx) }()

	cancel()
	require.Equal(t, byte(0xA2), s.read()[0])
	// server stays silent
	s.expect(0xE0, 0x00)
	require.NoError(t, <-errs)
}

func TestListenPing(t *testing.T) {
	t.Parallel()

	c, s, _ := subscribed(t)
	c.PingInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- c.Listen(ctx) }()

	s.expect(0xC0, 0x00)
	s.write(0xD0, 0x00)

	cancel()
	for {
		p := s.read()
		if p[0] == 0xA2 {
			s.write(0xB0, 0x02, p[2], p[3])
			break
		}
		require.Equal(t, []byte{0xC0, 0x00}, p)
	}
	for {
		p := s.read()
		if p[0] == 0xE0 {
			break
		}
		require.Equal(t, []byte{0xC0, 0x00}, p)
	}
	require.NoError(t, <-errs)
}

func TestListenServerClosed(t *testing.T) {
	t.Parallel()

	c, s, _ := subscribed(t)
	errs := make(chan error, 1)
	go func() { errs <- c.Listen(context.Background()) }()

	s.conn.Close()
	err := <-errs
	require.Error(t, err)
	require.True(t, errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe), err)
}

func TestPublishNoFreePacketID(t *testing.T) {
	t.Parallel()

	c, s, _ := connected(t)
	for id := 1; id < 1<<16; id++ {
		c.inflight.pubcomps.Add(queue.NewItem(uint16(id), nil))
	}

	err := c.Publish(context.Background(), "a", []byte("x"), model.AtLeastOnce, false)
	require.ErrorIs(t, err, model.ErrNoPacketID)
	require.ErrorIs(t, c.Subscribe(context.Background(), "a", model.AtMostOnce), model.ErrNoPacketID)

	errs := make(chan error, 1)
	go func() { errs <- c.Disconnect() }()
	s.expect(0xE0, 0x00)
	require.NoError(t, <-errs)
	require.Zero(t, c.inflight.pending(), "tables cleared on disconnect")
}
