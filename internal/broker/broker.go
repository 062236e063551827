// Package broker hands a producer's channel to exactly one consumer.
//
// Mentor chat responses stream token by token. The HTTP POST that asks the
// mentor a question spawns the producing goroutine, and the SSE GET that
// renders the reply is the first consumer. A reconnecting client becomes a
// subsequent consumer: it blocks until the producer finishes and then reloads
// the persisted reply instead of joining mid-stream.
package broker

type publication[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan TPayload
}

type subscription[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan chan TPayload
}

// ChannelBroker passes a channel with ID from a producer to the first
// consumer. Subsequent consumers block until the producer unpublishes.
type ChannelBroker[TID comparable, TPayload any] struct {
	stopChannel      chan struct{}
	publishChannel   chan publication[TID, TPayload]
	unpublishChannel chan TID
	subscribeChannel chan subscription[TID, TPayload]
}

// NewChannelBroker creates a broker. Call Start in a goroutine and Stop when done.
func NewChannelBroker[TID comparable, TPayload any]() *ChannelBroker[TID, TPayload] {
	return &ChannelBroker[TID, TPayload]{
		stopChannel:      make(chan struct{}),
		publishChannel:   make(chan publication[TID, TPayload]),
		unpublishChannel: make(chan TID),
		subscribeChannel: make(chan subscription[TID, TPayload]),
	}
}

// Start serves publish, unpublish, and subscribe events until Stop is called.
// It blocks, so run it in a goroutine.
func (b *ChannelBroker[TID, TPayload]) Start() {
	publishedChannels := map[TID]chan TPayload{}
	subscriberLists := map[TID][]chan chan TPayload{}
	for {
		select {
		case <-b.stopChannel:
			return

		case sub := <-b.subscribeChannel:
			c := publishedChannels[sub.ID]
			if c == nil {
				// The producer finished or never started. Closing signals the
				// subscriber to fall back to persisted data.
				close(sub.Channel)
				break
			}
			subscribers := subscriberLists[sub.ID]
			if subscribers == nil {
				// The first subscriber gets the producer's channel.
				subscriberLists[sub.ID] = []chan chan TPayload{sub.Channel}
				sub.Channel <- c
			} else {
				// Later subscribers block until the producer unpublishes.
				subscriberLists[sub.ID] = append(subscribers, sub.Channel)
			}

		case pub := <-b.publishChannel:
			publishedChannels[pub.ID] = pub.Channel

		case id := <-b.unpublishChannel:
			for _, waiting := range subscriberLists[id] {
				close(waiting)
			}
			delete(publishedChannels, id)
			delete(subscriberLists, id)
		}
	}
}

// Stop terminates the Start loop.
func (b *ChannelBroker[TID, TPayload]) Stop() {
	close(b.stopChannel)
}

// Subscribe returns a channel that yields the producer's channel for id. When
// no producer is live, or another consumer already holds the stream, the
// returned channel closes without a value once the producer is done.
func (b *ChannelBroker[TID, TPayload]) Subscribe(id TID) chan chan TPayload {
	channel := make(chan chan TPayload, 1)
	b.subscribeChannel <- subscription[TID, TPayload]{ID: id, Channel: channel}
	return channel
}

// Publish registers the producer's channel under id.
func (b *ChannelBroker[TID, TPayload]) Publish(id TID, channel chan TPayload) {
	b.publishChannel <- publication[TID, TPayload]{ID: id, Channel: channel}
}

// Unpublish removes the channel and releases any blocked subscribers. Use an
// unbuffered producer channel so the producer cannot run ahead of its one
// consumer; pair it with a timeout when consumers are unreliable.
func (b *ChannelBroker[TID, TPayload]) Unpublish(id TID) {
	b.unpublishChannel <- id
}
