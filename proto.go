package mqttc

import (
	"fmt"

	"github.com/RoanBrand/mqttc/internal/model"
	"github.com/RoanBrand/mqttc/internal/queue"
)

// inflight holds the pending acknowledgment tables of a session.
// Only the goroutine reading from the connection touches them.
type inflight struct {
	pubacks  *queue.Lookup // QoS 1 PUBLISH sent
	pubrecs  *queue.Lookup // QoS 2 PUBLISH sent
	pubrels  *queue.Lookup // QoS 2 PUBLISH received and held
	pubcomps *queue.Lookup // PUBREL sent
}

func newInflight() *inflight {
	return &inflight{
		pubacks:  queue.NewLookup(),
		pubrecs:  queue.NewLookup(),
		pubrels:  queue.NewLookup(),
		pubcomps: queue.NewLookup(),
	}
}

func (f *inflight) inUse(id uint16) bool {
	return f.pubacks.Present(id) || f.pubrecs.Present(id) || f.pubrels.Present(id) || f.pubcomps.Present(id)
}

func (f *inflight) pending() int {
	return f.pubacks.Len() + f.pubrecs.Len() + f.pubrels.Len() + f.pubcomps.Len()
}

// forEach visits every entry still awaiting acknowledgment, with the packet it awaits.
func (f *inflight) forEach(fn func(awaiting byte, i *queue.Item)) {
	for _, t := range []struct {
		awaiting byte
		l        *queue.Lookup
	}{
		{model.PUBACK, f.pubacks},
		{model.PUBREC, f.pubrecs},
		{model.PUBREL, f.pubrels},
		{model.PUBCOMP, f.pubcomps},
	} {
		t.l.ForEach(func(i *queue.Item) { fn(t.awaiting, i) })
	}
}

func (f *inflight) reset() {
	f.pubacks.Reset()
	f.pubrecs.Reset()
	f.pubrels.Reset()
	f.pubcomps.Reset()
}

// freeIDs yields packet identifiers that no table holds.
// A taken draw is followed by the next free identifier above it,
// and 0 once all 65535 are taken.
type freeIDs struct {
	ids model.IDGenerator
	f   *inflight
}

func (g freeIDs) NextID() uint16 {
	id := g.ids.NextID()
	for i := 0; i < 1<<16; i++ {
		if id != 0 && !g.f.inUse(id) {
			return id
		}
		id++
	}
	return 0
}

// handle applies an inbound packet to the tables.
// It returns the reply owed to the server and the message to deliver, either may be nil.
// A reportable error can come with a reply, which must still be sent.
func (f *inflight) handle(p model.Packet) (reply model.Packet, deliver *model.Publish, err error) {
	switch p := p.(type) {
	case *model.Publish:
		switch p.QoS {
		case model.AtMostOnce:
			return nil, p, nil
		case model.AtLeastOnce:
			return &model.Puback{PacketID: p.PacketID}, p, nil
		default:
			// A resent PUBLISH keeps the first copy. Method A: deliver on PUBREL.
			f.pubrels.Add(queue.NewItem(p.PacketID, p))
			return &model.Pubrec{PacketID: p.PacketID}, nil, nil
		}

	case *model.Puback:
		if f.pubacks.Remove(p.PacketID) == nil {
			return nil, nil, &InconsistencyError{PacketType: model.PUBACK, PacketID: p.PacketID}
		}

	case *model.Pubrec:
		reply = &model.Pubrel{PacketID: p.PacketID}
		if f.pubrecs.Remove(p.PacketID) == nil {
			return reply, nil, &InconsistencyError{PacketType: model.PUBREC, PacketID: p.PacketID}
		}
		f.pubcomps.Add(queue.NewItem(p.PacketID, nil))
		return reply, nil, nil

	case *model.Pubrel:
		i := f.pubrels.Remove(p.PacketID)
		f.pubcomps.Add(queue.NewItem(p.PacketID, nil))
		reply = &model.Pubcomp{PacketID: p.PacketID}
		if i == nil {
			return reply, nil, fmt.Errorf("%w: packet %d", ErrHeldMessageMissing, p.PacketID)
		}
		return reply, i.P, nil

	case *model.Pubcomp:
		if f.pubcomps.Remove(p.PacketID) == nil {
			return nil, nil, &InconsistencyError{PacketType: model.PUBCOMP, PacketID: p.PacketID}
		}

	case *model.Suback, *model.Unsuback, *model.Pingresp:

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnexpectedPacket, model.Name(p.Type()))
	}

	return nil, nil, nil
}
