package api

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"travelbuddy-api/domain"
)

type publishJob struct {
	userID    string
	ev        domain.Event
	dedupeKey string // key to release when the enqueue fails (for retryable operations)
}

// PublisherConfig tunes the async activity publisher.
type PublisherConfig struct {
	Workers        int
	Buffer         int
	EnqueueTimeout time.Duration
	HandoffTimeout time.Duration
}

// PublisherConfigFromEnv reads the publisher tuning knobs from the
// environment, falling back to defaults sized for a single instance.
func PublisherConfigFromEnv() PublisherConfig {
	return PublisherConfig{
		Workers:        envInt("PUBLISH_WORKERS", 16),
		Buffer:         envInt("PUBLISH_BUFFER", 2048),
		EnqueueTimeout: envDur("PUBLISH_TIMEOUT", 60*time.Second),
		HandoffTimeout: envDur("PUBLISH_HANDOFF_TIMEOUT", 15*time.Millisecond),
	}
}

// Publisher pushes activity events onto the queue from a bounded worker
// pool so handlers never block on the queue service. Each instance owns
// its workers; Shutdown drains them.
type Publisher struct {
	store   Store
	deduper Deduper
	log     *log.Logger
	cfg     PublisherConfig

	jobs chan publishJob
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPublisher starts the worker pool. The deduper may be nil when no
// job carries a dedupe key.
func NewPublisher(store Store, deduper Deduper, logger *log.Logger, cfg PublisherConfig) *Publisher {
	if logger == nil {
		panic("logger is not initialized")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	p := &Publisher{
		store:   store,
		deduper: deduper,
		log:     logger,
		cfg:     cfg,
		jobs:    make(chan publishJob, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Infof("activity publisher started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		cfg.Workers, cfg.Buffer, cfg.EnqueueTimeout, cfg.HandoffTimeout)
	return p
}

func (p *Publisher) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.EnqueueTimeout)
		err := p.store.EnqueueEvent(ctx, j.userID, j.ev)
		cancel()

		if err != nil {
			if j.dedupeKey != "" && p.deduper != nil {
				if rerr := p.deduper.Remove(context.Background(), j.userID, j.dedupeKey); rerr != nil {
					p.log.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", rerr, j.dedupeKey, j.userID)
				}
			}
			p.log.Errorf("event enqueue failed, err: %v, user: %s, type: %s, worker: %d", err, j.userID, j.ev.Type, id)
		}
	}
}

// Publish hands the event to the pool without blocking. When the buffer
// is full it waits up to the handoff timeout before reporting false so
// the caller can enqueue inline.
func (p *Publisher) Publish(userID string, ev domain.Event, dedupeKey string) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	job := publishJob{userID: userID, ev: ev, dedupeKey: dedupeKey}
	if ok, closed := p.trySendNonBlocking(job); closed {
		return false
	} else if ok {
		return true
	}

	if p.cfg.HandoffTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(p.cfg.HandoffTimeout)
	defer timer.Stop()
	ok, _ := p.sendWithTimer(job, timer.C)
	return ok
}

func (p *Publisher) trySendNonBlocking(job publishJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case p.jobs <- job:
		return true, false
	default:
		return false, false
	}
}

func (p *Publisher) sendWithTimer(job publishJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case p.jobs <- job:
		return true, false
	case <-timer:
		return false, false
	}
}

// Shutdown stops accepting jobs and waits for the workers to drain the
// buffer.
func (p *Publisher) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func envDur(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
