package loader

import "sync"

// Dispatcher decides on which goroutine completion callbacks run
type Dispatcher interface {
	Dispatch(func())
}

type DispatcherFunc func(func())

func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

// Inline runs callbacks on the goroutine which completed the load
var Inline = DispatcherFunc(func(fn func()) { fn() })

// SerialDispatcher runs all callbacks one after the other on a single
// goroutine, in the order they were dispatched
type SerialDispatcher struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

func NewSerialDispatcher(buffer int) *SerialDispatcher {
	d := &SerialDispatcher{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *SerialDispatcher) Dispatch(fn func()) {
	d.queue <- fn
}

// Close runs the callbacks still queued and stops the dispatcher
func (d *SerialDispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
		<-d.done
	})
}

func (d *SerialDispatcher) loop() {
	defer close(d.done)
	for fn := range d.queue {
		fn()
	}
}
