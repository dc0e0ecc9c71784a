// Package receipts writes read receipts off the request path. Marking
// messages read is fire-and-forget for clients; the pool absorbs bursts
// when a user catches up on a long backlog.
package receipts

import (
	"sync"

	"crewchat/pkg/logger"
	"crewchat/pkg/store"
	"crewchat/pkg/telemetry"
)

type job struct {
	messageIDs []string
	afterID    string
	crewID     string
	readerID   string
}

// Pool runs a fixed set of workers draining receipt writes.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
	once sync.Once
}

// NewPool sizes the pool. Zero values get sane defaults.
func NewPool(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 256
	}
	p := &Pool{jobs: make(chan job, queue)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.execute(j)
	}
}

func (p *Pool) execute(j job) {
	switch {
	case j.afterID != "":
		n, err := store.MarkAllAfter(j.crewID, j.afterID, j.readerID)
		if err != nil {
			logger.Warn("receipt_mark_all_failed", "crew", j.crewID, "after", j.afterID, "error", err)
			return
		}
		telemetry.ReceiptsWritten.WithLabelValues("inserted").Add(float64(n))
	default:
		n, err := store.MarkManyRead(j.messageIDs, j.readerID)
		if err != nil {
			// the writes are idempotent, one retry of the batch is safe
			n, err = store.MarkManyRead(j.messageIDs, j.readerID)
		}
		if err != nil {
			logger.Warn("receipt_mark_failed", "reader", j.readerID, "error", err)
		}
		if n > 0 {
			telemetry.ReceiptsWritten.WithLabelValues("inserted").Add(float64(n))
		}
		if dup := len(j.messageIDs) - n; err == nil && dup > 0 {
			telemetry.ReceiptsWritten.WithLabelValues("exists").Add(float64(dup))
		}
	}
}

// Enqueue queues receipt writes for the given message IDs. When the
// queue is full the job runs inline so no receipt is ever dropped.
func (p *Pool) Enqueue(messageIDs []string, readerID string) {
	j := job{messageIDs: messageIDs, readerID: readerID}
	select {
	case p.jobs <- j:
	default:
		p.execute(j)
	}
}

// EnqueueAllAfter queues a catch-up mark: everything in crewID at or
// after afterID becomes read for readerID.
func (p *Pool) EnqueueAllAfter(crewID, afterID, readerID string) {
	j := job{crewID: crewID, afterID: afterID, readerID: readerID}
	select {
	case p.jobs <- j:
	default:
		p.execute(j)
	}
}

// Stop drains the queue and stops the workers. Idempotent.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}
