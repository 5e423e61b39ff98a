// Package category fans the live category distribution out to channel subscribers.
package category

import (
	"context"
	"sync"
	"time"

	"go-firestore-admin/internal/eventpublisher"
	"go-firestore-admin/internal/eventpublisher/common"
	"go-firestore-admin/internal/eventpublisher/event"
	"go-firestore-admin/internal/metrics"
	"go-firestore-admin/internal/projection"

	"github.com/rs/zerolog/log"
)

const (
	writeTimeout          = time.Second
	writeFailureThreshold = 3
)

// Subscriber is the view capability the publisher is driven by.
type Subscriber interface {
	Subscribe(onChange func(projection.Snapshot, error)) *projection.Subscription
}

type Publisher struct {
	view       Subscriber
	submanager *common.SubManager
	publisher  *common.PublisherWithFailureThreshold

	latestMu sync.RWMutex
	latest   *event.Event
}

var _ eventpublisher.StartablePublisher = (*Publisher)(nil)

func New(view Subscriber) *Publisher {
	return &Publisher{
		view:       view,
		submanager: common.NewSubManager(),
		publisher:  common.NewPublisherWithFailureThreshold(writeTimeout, writeFailureThreshold),
	}
}

// Subscribe registers a channel for every future distribution. The channel is closed on
// Unsubscribe, when it keeps missing writes, or when the publisher stops.
func (p *Publisher) Subscribe(subscriber event.EventWChannel) {
	p.submanager.Subscribe(subscriber)
}

func (p *Publisher) Unsubscribe(subscriber event.EventWChannel) {
	if p.submanager.Unsubscribe(subscriber) {
		p.publisher.Forget(subscriber)
	}
}

// Latest returns the most recent distribution, if one has been computed yet.
func (p *Publisher) Latest() (projection.Snapshot, time.Time, bool) {
	p.latestMu.RLock()
	defer p.latestMu.RUnlock()

	if p.latest == nil {
		return nil, time.Time{}, false
	}
	return p.latest.Distribution, p.latest.At, true
}

func (p *Publisher) Subscribers() int {
	return p.submanager.Len()
}

// Start holds one view subscription until ctx is done or the listener fails.
// Every projection is stored as the latest one, mirrored into the category gauge and
// delivered to all subscribers before the next one is handled.
func (p *Publisher) Start(ctx context.Context) error {
	defer p.submanager.UnsubscribeAll()

	failed := make(chan error, 1)
	sub := p.view.Subscribe(func(s projection.Snapshot, err error) {
		if err != nil {
			p.publish(ctx, event.Event{At: time.Now(), Err: err})
			failed <- err
			return
		}

		e := event.Event{Distribution: s, At: time.Now()}
		p.setLatest(e)
		metrics.SetCategoryDistribution(s)
		log.Debug().Int("categories", len(s)).Int("products", s.Total()).Msg("publish category distribution")
		p.publish(ctx, e)
	})
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
		log.Info().Err(ctx.Err()).Msg("CategoryPublisher stopped")
		return ctx.Err()
	case err := <-failed:
		log.Error().Err(err).Msg("CategoryPublisher listener failed")
		return err
	}
}

func (p *Publisher) setLatest(e event.Event) {
	p.latestMu.Lock()
	defer p.latestMu.Unlock()
	p.latest = &e
}

// publish writes e to every subscriber concurrently and waits for all writes, so
// subscribers always see distributions in order.
func (p *Publisher) publish(ctx context.Context, e event.Event) {
	var wg sync.WaitGroup
	p.submanager.OnSubscribers(func(subscriber event.EventWChannel) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.publisher.Publish(ctx, subscriber, e); err != nil {
				log.Warn().Err(err).Msg("dropping slow distribution subscriber")
				p.Unsubscribe(subscriber)
			}
		}()
	})
	wg.Wait()
}
