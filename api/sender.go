package api

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"schedule-api/domain"
)

type syncJob struct {
	userID string
	events []domain.SyncEvent
}

// SyncSender fans calendar sync events out to the queue through a bounded
// worker pool so mutations never wait on queue latency. A saturated buffer
// falls back to an inline send; a failed send is logged and dropped, the
// user-facing mutation has already succeeded.
type SyncSender struct {
	store          Storage
	log            *log.Logger
	jobs           chan syncJob
	sendTimeout    time.Duration
	handoffTimeout time.Duration

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSyncSender starts the worker pool. Pool sizing comes from SYNC_WORKERS
// and SYNC_BUFFER, timeouts from SYNC_SEND_TIMEOUT and SYNC_HANDOFF_TIMEOUT.
func NewSyncSender(store Storage, logger *log.Logger) *SyncSender {
	if logger == nil {
		panic("Logger is not initialized")
	}
	workers := envInt("SYNC_WORKERS", 8)
	buffer := envInt("SYNC_BUFFER", 1024)
	s := &SyncSender{
		store:          store,
		log:            logger,
		jobs:           make(chan syncJob, buffer),
		sendTimeout:    envDur("SYNC_SEND_TIMEOUT", 30*time.Second),
		handoffTimeout: envDur("SYNC_HANDOFF_TIMEOUT", 15*time.Millisecond),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	logger.Infof("sync sender started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		workers, buffer, s.sendTimeout, s.handoffTimeout)
	return s
}

// Dispatch hands events to the pool. When the buffer stays full past the
// handoff timeout the send happens inline on the calling goroutine.
func (s *SyncSender) Dispatch(userID string, events []domain.SyncEvent) {
	if s == nil || len(events) == 0 {
		return
	}
	job := syncJob{userID: userID, events: events}
	if s.tryEnqueue(job) {
		return
	}

	s.log.Warn("sync buffer saturated; sending inline")
	s.send(job)
}

// Shutdown stops the workers after draining buffered jobs.
func (s *SyncSender) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

func (s *SyncSender) worker(id int) {
	defer s.wg.Done()
	for j := range s.jobs {
		if err := s.sendErr(j); err != nil {
			s.log.Errorf("sync enqueue failed, err: %v, user: %s, count: %d, worker: %d", err, j.userID, len(j.events), id)
		}
	}
}

func (s *SyncSender) send(job syncJob) {
	if err := s.sendErr(job); err != nil {
		s.log.Errorf("sync enqueue failed, err: %v, user: %s, count: %d", err, job.userID, len(job.events))
	}
}

func (s *SyncSender) sendErr(job syncJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()
	return s.store.EnqueueSyncEvents(ctx, job.userID, job.events)
}

func (s *SyncSender) tryEnqueue(job syncJob) bool {
	if ok, closed := trySendNonBlocking(s.jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if s.handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(s.handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(s.jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan syncJob, job syncJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan syncJob, job syncJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDur(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
