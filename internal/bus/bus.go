// Package bus carries room events between gateway processes.
package bus

import (
	"context"
	"encoding/json"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
)

// Event is one outbound frame addressed to every local member of RoomID on
// every subscribed process.
type Event struct {
	RoomID domain.RoomID
	Frame  json.RawMessage
	// Origin is the instance id of the publishing process.
	Origin string
}

// Bus is the per-process endpoint of the fan-out layer. Interest is reference
// counted per room: the first Subscribe for a room subscribes the process and
// the matching last Unsubscribe drops it.
//
// Failures are reported as errs.ErrBusUnavailable.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, roomID domain.RoomID) error
	Unsubscribe(ctx context.Context, roomID domain.RoomID) error
	// Listen blocks, calling handle for every event of a subscribed room in
	// arrival order, until ctx is done or the bus is closed.
	Listen(ctx context.Context, handle func(Event)) error
	Close() error
}
