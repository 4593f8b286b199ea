package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/metrics"
)

var (
	// ErrChannelClosed is returned by Submit once the manager has begun
	// shutting down.
	ErrChannelClosed = errors.New("transfer: submission channel is closed")

	// ErrChannelFull is returned by Submit when the bounded queue has
	// no free capacity; the caller decides whether to back off or drop
	// the request.
	ErrChannelFull = errors.New("transfer: submission channel is full")

	// ErrShutdownTimedOut is returned by Shutdown when the worker did
	// not drain its queue within the configured timeout.
	ErrShutdownTimedOut = errors.New("transfer: shutdown timed out waiting for worker to drain")
)

// DefaultShutdownTimeout is used when New is given a non-positive
// timeout.
const DefaultShutdownTimeout = 5 * time.Minute

// MoveRequest asks the manager to relocate a blob to a peer storage
// node.
type MoveRequest struct {
	BlobID         string
	DestinationURL string
}

// Transferer performs the actual blob relocation: reading the local
// copy, writing it to destinationURL, fsyncing, and deleting the local
// copy. A pkg/repository-backed implementation provides this in the
// amphora daemon; tests substitute a stub.
type Transferer interface {
	Transfer(ctx context.Context, blobID, destinationURL string) error
}

type job struct {
	req     MoveRequest
	release func()
}

// Manager is a per-storage-node transfer queue: a single worker
// consumes a bounded channel, deduplicating in-flight blob ids via a
// pending set whose guard is released on every exit path, including a
// worker panic.
type Manager struct {
	transferer Transferer
	logger     zerolog.Logger

	pending *pendingSet

	mu              sync.Mutex
	closed          bool
	ch              chan job
	done            chan struct{}
	shutdownTimeout time.Duration
}

// New starts a Manager whose worker calls transferer for every
// accepted request. bufferSize bounds the submission queue;
// shutdownTimeout bounds how long Shutdown waits for the worker to
// drain before giving up (default 5 minutes if <= 0).
func New(transferer Transferer, bufferSize int, shutdownTimeout time.Duration) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	m := &Manager{
		transferer:      transferer,
		logger:          log.WithComponent("transfer"),
		pending:         newPendingSet(),
		ch:              make(chan job, bufferSize),
		done:            make(chan struct{}),
		shutdownTimeout: shutdownTimeout,
	}
	go m.run()
	return m
}

func (m *Manager) run() {
	defer close(m.done)
	for j := range m.ch {
		m.process(j)
	}
}

func (m *Manager) process(j job) {
	timer := metrics.NewTimer()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Str("blob_id", j.req.BlobID).Msg("transfer worker panicked")
		}
		j.release()
		metrics.TransferQueueDepth.Set(float64(len(m.ch)))
	}()

	if err := m.transferer.Transfer(context.Background(), j.req.BlobID, j.req.DestinationURL); err != nil {
		m.logger.Error().Err(err).Str("blob_id", j.req.BlobID).Msg("blob transfer failed")
		metrics.TransfersCompletedTotal.WithLabelValues("failed").Inc()
		return
	}
	metrics.TransfersCompletedTotal.WithLabelValues("ok").Inc()
	timer.ObserveDuration(metrics.TransferDuration)
}

// Submit enqueues req via a non-blocking try-send. A blob id already
// in flight is silently dropped (deduplication), not an error.
func (m *Manager) Submit(req MoveRequest) error {
	release, started := m.pending.start(req.BlobID)
	if !started {
		metrics.TransfersCompletedTotal.WithLabelValues("deduplicated").Inc()
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		release()
		return ErrChannelClosed
	}

	select {
	case m.ch <- job{req: req, release: release}:
		metrics.TransferQueueDepth.Set(float64(len(m.ch)))
		return nil
	default:
		release()
		return ErrChannelFull
	}
}

// Shutdown closes the submission channel and waits for the worker to
// drain, up to the configured timeout. Calling Shutdown more than once
// is a no-op after the first call.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.ch)
	m.mu.Unlock()

	timer := time.NewTimer(m.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrShutdownTimedOut
	}
}

// pendingSet tracks blob ids currently being transferred.
type pendingSet struct {
	mu   sync.Mutex
	data map[string]struct{}
}

func newPendingSet() *pendingSet {
	return &pendingSet{data: make(map[string]struct{})}
}

// start marks id as in flight, returning a release func and true — or
// returns started=false if id was already pending.
func (p *pendingSet) start(id string) (release func(), started bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.data[id]; ok {
		return nil, false
	}
	p.data[id] = struct{}{}
	return func() {
		p.mu.Lock()
		delete(p.data, id)
		p.mu.Unlock()
	}, true
}

// contains reports whether id is currently pending. Exposed for tests.
func (p *pendingSet) contains(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.data[id]
	return ok
}
