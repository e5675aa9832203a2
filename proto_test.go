package mqttc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RoanBrand/mqttc/internal/model"
	"github.com/RoanBrand/mqttc/internal/queue"
)

func TestHandleInboundPublish(t *testing.T) {
	t.Parallel()

	f := newInflight()

	p0 := &model.Publish{Topic: "t", Payload: []byte("0")}
	reply, msg, err := f.handle(p0)
	require.NoError(t, err)
	require.Nil(t, reply)
	require.Same(t, p0, msg)

	p1 := &model.Publish{Topic: "t", Payload: []byte("1"), QoS: model.AtLeastOnce, PacketID: 11}
	reply, msg, err = f.handle(p1)
	require.NoError(t, err)
	require.Equal(t, &model.Puback{PacketID: 11}, reply)
	require.Same(t, p1, msg)

	p2 := &model.Publish{Topic: "t", Payload: []byte("2"), QoS: model.ExactlyOnce, PacketID: 12}
	reply, msg, err = f.handle(p2)
	require.NoError(t, err)
	require.Equal(t, &model.Pubrec{PacketID: 12}, reply)
	require.Nil(t, msg, "QoS 2 held until PUBREL")
	require.True(t, f.pubrels.Present(12))

	dup := &model.Publish{Topic: "t", Payload: []byte("again"), QoS: model.ExactlyOnce, PacketID: 12, Dup: true}
	reply, msg, err = f.handle(dup)
	require.NoError(t, err)
	require.Equal(t, &model.Pubrec{PacketID: 12}, reply)
	require.Nil(t, msg)

	reply, msg, err = f.handle(&model.Pubrel{PacketID: 12})
	require.NoError(t, err)
	require.Equal(t, &model.Pubcomp{PacketID: 12}, reply)
	require.Same(t, p2, msg, "first copy delivered")
	require.False(t, f.pubrels.Present(12))
	require.True(t, f.pubcomps.Present(12))
}

func TestHandleSenderQoS1(t *testing.T) {
	t.Parallel()

	f := newInflight()
	f.pubacks.Add(queue.NewItem(7, &model.Publish{Topic: "t", QoS: model.AtLeastOnce, PacketID: 7}))

	reply, msg, err := f.handle(&model.Puback{PacketID: 7})
	require.NoError(t, err)
	require.Nil(t, reply)
	require.Nil(t, msg)
	require.Zero(t, f.pending())
}

func TestHandleSenderQoS2(t *testing.T) {
	t.Parallel()

	f := newInflight()
	f.pubrecs.Add(queue.NewItem(9, &model.Publish{Topic: "t", QoS: model.ExactlyOnce, PacketID: 9}))

	reply, _, err := f.handle(&model.Pubrec{PacketID: 9})
	require.NoError(t, err)
	require.Equal(t, &model.Pubrel{PacketID: 9}, reply)
	require.False(t, f.pubrecs.Present(9))
	require.True(t, f.pubcomps.Present(9))

	reply, _, err = f.handle(&model.Pubcomp{PacketID: 9})
	require.NoError(t, err)
	require.Nil(t, reply)
	require.Zero(t, f.pending())
}

func TestHandleUnknownIDs(t *testing.T) {
	t.Parallel()

	f := newInflight()
	f.pubacks.Add(queue.NewItem(1, nil))

	_, _, err := f.handle(&model.Puback{PacketID: 2})
	require.ErrorIs(t, err, ErrUnknownPacketID)
	var ie *InconsistencyError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, uint16(2), ie.PacketID)
	require.True(t, reportable(err))
	require.True(t, f.pubacks.Present(1), "tables unchanged")

	reply, _, err := f.handle(&model.Pubrec{PacketID: 3})
	require.ErrorIs(t, err, ErrUnknownPacketID)
	require.Equal(t, &model.Pubrel{PacketID: 3}, reply)
	require.False(t, f.pubcomps.Present(3))

	_, _, err = f.handle(&model.Pubcomp{PacketID: 4})
	require.ErrorIs(t, err, ErrUnknownPacketID)

	reply, msg, err := f.handle(&model.Pubrel{PacketID: 5})
	require.ErrorIs(t, err, ErrHeldMessageMissing)
	require.True(t, reportable(err))
	require.Equal(t, &model.Pubcomp{PacketID: 5}, reply)
	require.Nil(t, msg)

	require.Equal(t, 2, f.pending())
}

func TestHandleNoTableEffect(t *testing.T) {
	t.Parallel()

	f := newInflight()
	for _, p := range []model.Packet{&model.Suback{PacketID: 1}, &model.Unsuback{PacketID: 1}, &model.Pingresp{}} {
		reply, msg, err := f.handle(p)
		require.NoError(t, err)
		require.Nil(t, reply)
		require.Nil(t, msg)
	}
	require.Zero(t, f.pending())

	_, _, err := f.handle(&model.Connack{Accepted: true})
	require.ErrorIs(t, err, ErrUnexpectedPacket)
	require.False(t, reportable(err))
}

func TestFreeIDs(t *testing.T) {
	t.Parallel()

	f := newInflight()
	f.pubacks.Add(queue.NewItem(2, nil))
	f.pubcomps.Add(queue.NewItem(3, nil))

	g := freeIDs{ids: &countingIDs{n: 1}, f: f}
	require.Equal(t, uint16(4), g.NextID(), "taken identifiers skipped")

	g = freeIDs{ids: &countingIDs{n: 65535}, f: f}
	require.Equal(t, uint16(1), g.NextID(), "0 skipped on wrap around")

	for id := 1; id < 1<<16; id++ {
		f.pubcomps.Add(queue.NewItem(uint16(id), nil))
	}
	require.Zero(t, g.NextID())
}

func TestInflightForEachAndReset(t *testing.T) {
	t.Parallel()

	f := newInflight()
	f.pubacks.Add(queue.NewItem(1, nil))
	f.pubrels.Add(queue.NewItem(2, &model.Publish{Topic: "t", QoS: model.ExactlyOnce, PacketID: 2}))
	f.pubcomps.Add(queue.NewItem(3, nil))

	seen := map[uint16]byte{}
	f.forEach(func(awaiting byte, i *queue.Item) {
		require.False(t, i.Added.IsZero())
		seen[i.PId] = awaiting
	})
	require.Equal(t, map[uint16]byte{1: model.PUBACK, 2: model.PUBREL, 3: model.PUBCOMP}, seen)

	f.reset()
	require.Zero(t, f.pending())
	require.False(t, f.inUse(2))
}
