package eventpublisher

import (
	"context"

	"go-firestore-admin/internal/eventpublisher/event"
)

type Publisher interface {
	Subscribe(event.EventWChannel)
	Unsubscribe(event.EventWChannel)
}

// StartablePublisher is a publisher driven by a long-running source.
type StartablePublisher interface {
	Publisher
	Start(ctx context.Context) error
}
