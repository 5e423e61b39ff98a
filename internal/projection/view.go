package projection

import (
	"context"
	"sync"

	productRepo "go-firestore-admin/internal/repository/product"

	"github.com/rs/zerolog/log"
)

// Source is the part of the product repository the view listens to.
type Source interface {
	Watch(ctx context.Context) <-chan productRepo.SnapshotEvent
}

type View struct {
	source Source
}

func NewView(source Source) *View {
	return &View{source: source}
}

// Subscription is the handle returned by View.Subscribe.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe starts a listener on the product collection and calls onChange with a fresh
// projection for the initial load and every change after it. A listener failure is reported
// once through onChange with a nil snapshot, after which the subscription ends on its own.
//
// onChange runs on the subscription goroutine and must not call Unsubscribe.
func (v *View) Subscribe(onChange func(Snapshot, error)) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	events := v.source.Watch(ctx)

	go func() {
		defer close(sub.done)
		defer cancel()

		for e := range events {
			// drop whatever arrives after Unsubscribe
			if ctx.Err() != nil {
				continue
			}
			if e.Err != nil {
				onChange(nil, e.Err)
				continue
			}
			// every document counts, including those the repository could not decode
			onChange(Count(e.Categories), nil)
		}
		log.Debug().Msg("projection view: listener released")
	}()

	return sub
}

// Unsubscribe stops recomputation and returns once the underlying listener is released.
// Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed when the subscription has ended, either through Unsubscribe or a listener failure.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
