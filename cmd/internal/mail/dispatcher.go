package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asifkhan2513/secure-auth/cmd/security/token"
)

var (
	ErrQueueFull = errors.New("mail: dispatch queue full")
	ErrClosed    = errors.New("mail: dispatcher closed")
)

// Observer is told the outcome of every message. *metrics.Mail satisfies it.
type Observer interface {
	MailSent()
	MailFailed()
	MailDropped()
}

type nopObserver struct{}

func (nopObserver) MailSent()    {}
func (nopObserver) MailFailed()  {}
func (nopObserver) MailDropped() {}

// Dispatcher forwards messages to a Sender on one background goroutine.
// Enqueue never blocks: a full buffer drops the message. Close drains what
// is already queued.
type Dispatcher struct {
	sender  Sender
	log     *slog.Logger
	obs     Observer
	timeout time.Duration

	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the worker goroutine.
func NewDispatcher(cfg Config, sender Sender, log *slog.Logger, obs Observer) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}

	d := &Dispatcher{
		sender:  sender,
		log:     log,
		obs:     obs,
		timeout: cfg.SendTimeout,
		ch:      make(chan Message, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.obs.MailFailed()
		d.log.Error("mail.send.fail", "email_fp", token.Fingerprint(msg.To), "subject", msg.Subject, "err", err)
		return
	}
	d.obs.MailSent()
	d.log.Debug("mail.send.ok", "email_fp", token.Fingerprint(msg.To), "subject", msg.Subject)
}

// Enqueue hands msg to the worker.
func (d *Dispatcher) Enqueue(msg Message) error {
	if d == nil || d.closed.Load() {
		return ErrClosed
	}

	select {
	case d.ch <- msg:
		return nil
	case <-d.done:
		return ErrClosed
	default:
		d.dropped.Add(1)
		d.obs.MailDropped()
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many messages were discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
