package butler

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/audioio"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"sync"
	"time"
)

const (
	DefaultPlaceholder = "⏳ Einen Moment, ich kümmere mich darum ..."
	BusyMessage        = "⏳ Ich bin gerade ausgelastet, bitte versuch es gleich nochmal."
)

// Dispatcher decides what goes into the synchronous webhook response.
type Dispatcher interface {
	Reply(ctx context.Context, msg models.InboundMessage) string
}

// SyncDispatcher answers inside the webhook request.
type SyncDispatcher struct {
	processor Processor
}

func NewSyncDispatcher(processor Processor) *SyncDispatcher {
	return &SyncDispatcher{processor: processor}
}

func (d *SyncDispatcher) Reply(ctx context.Context, msg models.InboundMessage) string {
	return d.processor.Process(ctx, msg)
}

type AsyncConfig struct {
	Workers     int
	QueueSize   int
	JobTimeout  time.Duration
	Placeholder string

	// DrainTimeout bounds how long Run keeps working on queued replies after shutdown starts.
	DrainTimeout time.Duration
}

// cancelGrace is how long Run waits for workers to notice their jobs were cancelled.
const cancelGrace = time.Second

// AsyncDispatcher acknowledges with a placeholder and delivers the real reply through the Sender.
type AsyncDispatcher struct {
	processor Processor
	sender    audioio.Sender
	cfg       AsyncConfig

	// mu guards closed, senders hold the read lock so close(jobs) never races a send.
	mu     sync.RWMutex
	closed bool
	jobs   chan models.InboundMessage

	// jobsCtx parents every job, cancelJobs aborts in-flight and queued replies once the drain deadline passes.
	jobsCtx    context.Context
	cancelJobs context.CancelFunc
}

func NewAsyncDispatcher(processor Processor, sender audioio.Sender, cfg AsyncConfig) *AsyncDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultPlaceholder
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	return &AsyncDispatcher{
		processor:  processor,
		sender:     sender,
		cfg:        cfg,
		jobs:       make(chan models.InboundMessage, cfg.QueueSize),
		jobsCtx:    jobsCtx,
		cancelJobs: cancelJobs,
	}
}

func (d *AsyncDispatcher) Reply(ctx context.Context, msg models.InboundMessage) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn().Str("message_sid", msg.MessageSid).Msg("dispatcher stopped, answering synchronously")
		return d.processor.Process(ctx, msg)
	}

	select {
	case d.jobs <- msg:
		log.Debug().Str("message_sid", msg.MessageSid).Int("queued", len(d.jobs)).Msg("message queued")
		return d.cfg.Placeholder
	default:
		log.Warn().Str("message_sid", msg.MessageSid).Int("queue_size", d.cfg.QueueSize).Msg("could NOT queue message cause queue full")
		return BusyMessage
	}
}

// Run starts the workers and blocks until ctx is done and the queue is drained.
// Draining stops after DrainTimeout, the remaining replies are cancelled and dropped.
func (d *AsyncDispatcher) Run(ctx context.Context) error {
	log.Info().Int("workers", d.cfg.Workers).Int("queue_size", d.cfg.QueueSize).Msg("AsyncDispatcher started")

	eg := new(errgroup.Group)
	for i := 0; i < d.cfg.Workers; i++ {
		worker := i
		eg.Go(func() error {
			d.replyRoutine(worker)
			return nil
		})
	}

	<-ctx.Done()
	d.mu.Lock()
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	drained := make(chan error, 1)
	go func() {
		drained <- eg.Wait()
	}()

	select {
	case err := <-drained:
		log.Info().Msg("AsyncDispatcher drained")
		return err
	case <-time.After(d.cfg.DrainTimeout):
	}

	log.Warn().Dur("drain_timeout", d.cfg.DrainTimeout).Int("queued", len(d.jobs)).Msg("drain deadline passed, cancelling remaining replies")
	d.cancelJobs()
	select {
	case err := <-drained:
		return err
	case <-time.After(cancelGrace):
		log.Warn().Msg("AsyncDispatcher stopped with workers still busy")
		return nil
	}
}

func (d *AsyncDispatcher) replyRoutine(worker int) {
	for msg := range d.jobs {
		if d.jobsCtx.Err() != nil {
			log.Warn().Int("worker", worker).Str("message_sid", msg.MessageSid).Str("from", msg.From).Msg("reply dropped on shutdown")
			continue
		}
		msg.Trace.ReceivedAt = time.Now()
		d.handle(worker, msg)
	}
}

// handle runs one job detached from the webhook request, failures are logged and never retried.
func (d *AsyncDispatcher) handle(worker int, msg models.InboundMessage) {
	ctx, cancel := context.WithTimeout(d.jobsCtx, d.cfg.JobTimeout)
	defer cancel()

	body := d.processor.Process(ctx, msg)
	if d.jobsCtx.Err() != nil {
		log.Warn().Int("worker", worker).Str("message_sid", msg.MessageSid).Str("from", msg.From).Msg("reply dropped on shutdown")
		return
	}
	reply := models.NewOutboundReply(msg, body)
	sid, err := d.sender.Send(ctx, reply)
	if err != nil {
		log.Error().Err(err).Int("worker", worker).Str("kind", models.KindOf(err).String()).Str("message_sid", msg.MessageSid).Str("to", reply.To).Msg("cannot deliver reply")
		return
	}
	log.Info().Int("worker", worker).Str("message_sid", msg.MessageSid).Str("reply_sid", sid).Dur("since_received", time.Since(msg.Trace.CreatedAt)).Msg("reply delivered")
}
