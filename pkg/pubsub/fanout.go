package pubsub

import (
	"context"
	"sync"

	"github.com/CutzuDev/itec2025/pkg/log"
)

// Handler receives events for one local subscriber.
type Handler func(*Event)

// Fanout multiplexes many local subscribers onto one driver subscription
// per channel. The driver subscription is opened by the first subscriber of a
// channel and released when the last one leaves.
type Fanout struct {
	sub    Subscriber
	ctx    context.Context
	cancel context.CancelFunc

	// opMu serialises driver Subscribe/Unsubscribe calls.
	opMu     sync.Mutex
	mu       sync.Mutex
	channels map[string]*fanoutChannel
	nextID   uint64
}

type fanoutChannel struct {
	handlers map[uint64]Handler
	ready    chan struct{}
	err      error
}

// NewFanout creates a Fanout over the given subscriber.
func NewFanout(sub Subscriber) *Fanout {
	ctx, cancel := context.WithCancel(context.Background())
	return &Fanout{
		sub:      sub,
		ctx:      ctx,
		cancel:   cancel,
		channels: make(map[string]*fanoutChannel),
	}
}

// Subscribe registers h on channel and returns a release function. The
// release function is safe to call more than once. Handlers of one channel
// are invoked sequentially in delivery order.
func (f *Fanout) Subscribe(ctx context.Context, channel string, h Handler) (func(), error) {
	f.mu.Lock()
	fc, ok := f.channels[channel]
	if !ok {
		fc = &fanoutChannel{handlers: make(map[uint64]Handler), ready: make(chan struct{})}
		f.channels[channel] = fc
	}
	f.nextID++
	id := f.nextID
	fc.handlers[id] = h
	f.mu.Unlock()

	if !ok {
		f.opMu.Lock()
		events, err := f.sub.Subscribe(f.ctx, channel)
		f.opMu.Unlock()
		if err != nil {
			f.mu.Lock()
			fc.err = err
			if f.channels[channel] == fc {
				delete(f.channels, channel)
			}
			f.mu.Unlock()
			close(fc.ready)
			return nil, err
		}
		close(fc.ready)
		go f.dispatch(channel, fc, events)
	} else {
		select {
		case <-fc.ready:
		case <-ctx.Done():
			f.remove(channel, fc, id)
			return nil, ctx.Err()
		}
		if fc.err != nil {
			return nil, fc.err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(channel, fc, id) })
	}, nil
}

func (f *Fanout) remove(channel string, fc *fanoutChannel, id uint64) {
	f.mu.Lock()
	delete(fc.handlers, id)
	last := len(fc.handlers) == 0 && f.channels[channel] == fc
	if last {
		delete(f.channels, channel)
	}
	f.mu.Unlock()

	if !last {
		return
	}

	f.opMu.Lock()
	defer f.opMu.Unlock()

	// A newer subscriber re-opened the channel; its driver subscription replaces ours.
	f.mu.Lock()
	_, reopened := f.channels[channel]
	f.mu.Unlock()
	if reopened {
		return
	}

	if err := f.sub.Unsubscribe(context.Background(), channel); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldChannel, channel).Msg("failed to release channel")
	}
}

func (f *Fanout) dispatch(channel string, fc *fanoutChannel, events <-chan *Event) {
	for ev := range events {
		f.mu.Lock()
		handlers := make([]Handler, 0, len(fc.handlers))
		for _, h := range fc.handlers {
			handlers = append(handlers, h)
		}
		f.mu.Unlock()

		for _, h := range handlers {
			h(ev)
		}
	}
	l := log.L()
	l.Debug().Str(log.FieldChannel, channel).Msg("channel dispatch stopped")
}

// Subscribers returns the number of local subscribers on channel.
func (f *Fanout) Subscribers(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fc, ok := f.channels[channel]; ok {
		return len(fc.handlers)
	}
	return 0
}

// Close stops every dispatch loop.
func (f *Fanout) Close() {
	f.cancel()
	f.mu.Lock()
	channels := make([]string, 0, len(f.channels))
	for ch := range f.channels {
		channels = append(channels, ch)
	}
	f.channels = make(map[string]*fanoutChannel)
	f.mu.Unlock()

	f.opMu.Lock()
	defer f.opMu.Unlock()
	for _, ch := range channels {
		f.sub.Unsubscribe(context.Background(), ch)
	}
}
