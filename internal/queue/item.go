package queue

import (
	"time"

	"github.com/RoanBrand/mqttc/internal/model"
)

// Item is stored in the pending acknowledgment tables.
type Item struct {
	P *model.Publish // nil for PUBREL/PUBCOMP bookkeeping

	Added time.Time
	PId   uint16

	next, prev *Item
}

// NewItem returns an item for packet identifier id, holding p if not nil.
func NewItem(id uint16, p *model.Publish) *Item {
	return &Item{P: p, PId: id, Added: time.Now()}
}
