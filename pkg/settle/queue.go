package settle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aurorazk/darkpool/pkg/engine"
)

// Broadcaster receives completed-match events. Satisfied by notify.Notifier.
type Broadcaster interface {
	BroadcastMatch(m *engine.Match)
}

// Journal persists settled matches for trade history. Optional.
type Journal interface {
	Append(m *engine.Match) error
}

// QueueConfig controls drain pacing and the bounded retry policy. The
// original system retried the head match forever, which starves the queue on
// a permanently invalid commitment; here exhausted matches move to a
// dead-letter list instead.
type QueueConfig struct {
	DrainDelay  time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Queue drains pending matches strictly FIFO through the reconciler, one at
// a time. It owns the pending, completed, and dead-letter lists.
type Queue struct {
	mu        sync.Mutex
	pending   []*engine.Match
	completed []*engine.Match
	dead      []*engine.Match

	recon     *Reconciler
	broadcast Broadcaster
	journal   Journal
	cfg       QueueConfig
	log       *zap.SugaredLogger

	// OnOutcome, when set, observes every settlement attempt's outcome:
	// "success" or a FailureKind name. Set before Run.
	OnOutcome func(outcome string)

	wake chan struct{}
}

func NewQueue(recon *Reconciler, broadcast Broadcaster, journal Journal, cfg QueueConfig, log *zap.SugaredLogger) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Second
	}
	return &Queue{
		recon:     recon,
		broadcast: broadcast,
		journal:   journal,
		cfg:       cfg,
		log:       log,
		wake:      make(chan struct{}, 1),
	}
}

// Enqueue appends matches to the pending queue and wakes the drain loop.
func (q *Queue) Enqueue(matches ...*engine.Match) {
	if len(matches) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, matches...)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled. The head match is retried
// with exponential backoff up to MaxAttempts, then dead-lettered so the
// matches behind it are not starved.
func (q *Queue) Run(ctx context.Context) {
	for {
		m := q.peek()
		if m == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			}
			continue
		}

		sig, err := q.recon.ExecuteMatch(ctx, m)
		q.observe(err)
		if err != nil {
			m.Attempts++
			if m.Attempts >= q.cfg.MaxAttempts {
				q.deadLetter(m)
				q.log.Errorw("match_dead_lettered",
					"match_id", m.ID,
					"attempts", m.Attempts,
					"err", err)
				continue
			}
			if !sleepCtx(ctx, q.backoff(m.Attempts)) {
				return
			}
			continue
		}

		q.complete(m, sig)
		if !sleepCtx(ctx, q.cfg.DrainDelay) {
			return
		}
	}
}

// ExecuteMatch settles a single match synchronously, bypassing the FIFO. Used
// by the trigger-match path; success still lands in the completed list,
// journal, and broadcast stream.
func (q *Queue) ExecuteMatch(ctx context.Context, m *engine.Match) (string, error) {
	sig, err := q.recon.ExecuteMatch(ctx, m)
	q.observe(err)
	if err != nil {
		return "", err
	}
	q.complete(m, sig)
	return sig, nil
}

func (q *Queue) observe(err error) {
	if q.OnOutcome == nil {
		return
	}
	if err == nil {
		q.OnOutcome("success")
		return
	}
	var serr *SettlementError
	if errors.As(err, &serr) {
		q.OnOutcome(serr.Kind.String())
		return
	}
	q.OnOutcome(Unknown.String())
}

func (q *Queue) peek() *engine.Match {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	return q.pending[0]
}

func (q *Queue) complete(m *engine.Match, sig string) {
	m.TxSignature = sig

	q.mu.Lock()
	q.removePendingLocked(m)
	q.completed = append(q.completed, m)
	q.mu.Unlock()

	if q.journal != nil {
		if err := q.journal.Append(m); err != nil {
			q.log.Errorw("journal_append_failed", "match_id", m.ID, "err", err)
		}
	}
	if q.broadcast != nil {
		q.broadcast.BroadcastMatch(m)
	}
}

func (q *Queue) deadLetter(m *engine.Match) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removePendingLocked(m)
	q.dead = append(q.dead, m)
}

func (q *Queue) removePendingLocked(m *engine.Match) {
	for i, p := range q.pending {
		if p.ID == m.ID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

func (q *Queue) backoff(attempts int) time.Duration {
	d := q.cfg.BackoffBase << (attempts - 1)
	if d > q.cfg.BackoffCap || d <= 0 {
		return q.cfg.BackoffCap
	}
	return d
}

// Depths reports queue sizes for the stats surface.
func (q *Queue) Depths() (pending, completed, dead int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), len(q.completed), len(q.dead)
}

// Completed returns copies of the settled matches, oldest first.
func (q *Queue) Completed() []engine.Match {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]engine.Match, len(q.completed))
	for i, m := range q.completed {
		out[i] = *m
	}
	return out
}

// DeadLetter returns copies of the matches that exhausted their retries.
func (q *Queue) DeadLetter() []engine.Match {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]engine.Match, len(q.dead))
	for i, m := range q.dead {
		out[i] = *m
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
