// Package notify delivers operator alerts (customer data discrepancies)
// without blocking the job that raised them.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/xelth-com/arcasync/internal/config"
)

// Message is one alert
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a single message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier accepts alerts; implementations must not block the caller
type Notifier interface {
	Notify(subject, body string)
}

// Dispatcher queues alerts and sends them from a single goroutine
type Dispatcher struct {
	sender  Sender
	queue   chan Message
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewDispatcher creates a dispatcher with a bounded queue
func NewDispatcher(sender Sender, size int) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	return &Dispatcher{
		sender:  sender,
		queue:   make(chan Message, size),
		timeout: 30 * time.Second,
		done:    make(chan struct{}),
	}
}

// New builds the dispatcher for the mail settings. Without an SMTP host or
// a recipient, alerts only go to the log.
func New(cfg config.MailConfig) *Dispatcher {
	var sender Sender = LogSender{}
	if cfg.Host != "" && cfg.AlertTo != "" {
		sender = NewMailSender(cfg)
		log.Printf("📧 Alerts will be mailed to %s via %s", cfg.AlertTo, cfg.Host)
	} else {
		log.Println("⚠️  SMTP not configured, alerts are logged only")
	}
	return NewDispatcher(sender, cfg.QueueSize)
}

// Start runs the delivery loop
func (d *Dispatcher) Start() {
	go func() {
		defer close(d.done)
		for msg := range d.queue {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := d.sender.Send(ctx, msg); err != nil {
				log.Printf("❌ Failed to send alert %q: %v", msg.Subject, err)
			}
			cancel()
		}
	}()
}

// Notify enqueues an alert. A full queue drops the alert.
func (d *Dispatcher) Notify(subject, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- Message{Subject: subject, Body: body}:
	default:
		log.Printf("⚠️  Alert queue full, dropping %q", subject)
	}
}

// Close stops accepting alerts and waits for the queued ones to be sent
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

// LogSender writes alerts to the process log
type LogSender struct{}

// Send logs the message
func (LogSender) Send(ctx context.Context, msg Message) error {
	log.Printf("📧 %s\n%s", msg.Subject, msg.Body)
	return nil
}
