// Package loop provides the single-goroutine event loop every registry
// callback runs on. Producers on other goroutines hand work to the loop with
// Invoke; nothing outside the loop goroutine touches tracking state.
package loop

import (
	"os"
	"os/signal"
	"sync"
	"weak"

	"go.uber.org/zap"
)

// queueSize bounds the number of pending callbacks before Invoke blocks.
const queueSize = 256

// MainLoop runs queued callbacks one at a time until Quit is called
type MainLoop struct {
	logger   *zap.Logger
	queue    chan func()
	quit     chan struct{}
	quitOnce sync.Once

	sigCh   chan os.Signal
	sigMu   sync.Mutex
	signals map[os.Signal][]*SignalSource
}

// SignalSource is a registered signal handler. Release unregisters it.
type SignalSource struct {
	loop     *MainLoop
	sig      os.Signal
	fn       func()
	released bool
}

// New creates a new event loop
func New(logger *zap.Logger) *MainLoop {
	return &MainLoop{
		logger:  logger.Named("loop"),
		queue:   make(chan func(), queueSize),
		quit:    make(chan struct{}),
		sigCh:   make(chan os.Signal, 1),
		signals: make(map[os.Signal][]*SignalSource),
	}
}

// Invoke queues fn to run on the loop goroutine. It returns false if the
// loop has already quit and fn will never run.
func (l *MainLoop) Invoke(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Quit stops the loop. The callback currently running, if any, completes
// first. Safe to call more than once and from any goroutine.
func (l *MainLoop) Quit() {
	l.quitOnce.Do(func() {
		l.logger.Debug("Quit requested")
		close(l.quit)
	})
}

// Done is closed once Quit has been called
func (l *MainLoop) Done() <-chan struct{} {
	return l.quit
}

// Run processes callbacks until Quit is called
func (l *MainLoop) Run() {
	l.logger.Debug("Loop running")
	defer signal.Stop(l.sigCh)

	for {
		// quit wins over queued work
		select {
		case <-l.quit:
			l.logger.Debug("Loop stopped")
			return
		default:
		}

		select {
		case <-l.quit:
			l.logger.Debug("Loop stopped")
			return
		case fn := <-l.queue:
			fn()
		case sig := <-l.sigCh:
			l.dispatchSignal(sig)
		}
	}
}

// AddSignal registers fn to run on the loop goroutine whenever the process
// receives sig
func (l *MainLoop) AddSignal(sig os.Signal, fn func()) *SignalSource {
	src := &SignalSource{loop: l, sig: sig, fn: fn}

	l.sigMu.Lock()
	l.signals[sig] = append(l.signals[sig], src)
	l.sigMu.Unlock()

	signal.Notify(l.sigCh, sig)
	return src
}

// Release unregisters the handler. Releasing twice is a no-op.
func (s *SignalSource) Release() {
	l := s.loop
	l.sigMu.Lock()
	defer l.sigMu.Unlock()

	if s.released {
		return
	}
	s.released = true

	sources := l.signals[s.sig]
	for i, src := range sources {
		if src == s {
			l.signals[s.sig] = append(sources[:i], sources[i+1:]...)
			break
		}
	}
	if len(l.signals[s.sig]) == 0 {
		delete(l.signals, s.sig)
	}
}

func (l *MainLoop) dispatchSignal(sig os.Signal) {
	l.sigMu.Lock()
	handlers := append([]*SignalSource(nil), l.signals[sig]...)
	l.sigMu.Unlock()

	l.logger.Info("Received signal", zap.String("signal", sig.String()))
	for _, src := range handlers {
		src.fn()
	}
}

// QuitOnSignal installs handlers that quit the loop on any of sigs. The
// handlers only hold a weak reference to the loop, so they never keep it
// alive; once the loop is gone they do nothing.
func QuitOnSignal(l *MainLoop, sigs ...os.Signal) []*SignalSource {
	sources := make([]*SignalSource, 0, len(sigs))
	for _, sig := range sigs {
		sources = append(sources, l.AddSignal(sig, quitHandler(weak.Make(l))))
	}
	return sources
}

func quitHandler(ref weak.Pointer[MainLoop]) func() {
	return func() {
		if l := ref.Value(); l != nil {
			l.Quit()
		}
	}
}
