package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/kendall-kelly/motorhub-api/config"
	"github.com/kendall-kelly/motorhub-api/logger"
)

// Notification templates
const (
	TemplateOrderCreated       = "order_created"
	TemplateOrderStatusChanged = "order_status_changed"
	TemplatePaymentRecorded    = "payment_recorded"
	TemplatePaymentUpdated     = "payment_updated"
)

// Notification is an email addressed to one user
type Notification struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// Notifier delivers notifications. Callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

var (
	notifierMu       sync.RWMutex
	notifierInstance Notifier
)

// GetNotifier returns the configured notifier, or a LogNotifier if none was set
func GetNotifier() Notifier {
	notifierMu.RLock()
	defer notifierMu.RUnlock()
	if notifierInstance == nil {
		return LogNotifier{}
	}
	return notifierInstance
}

// SetNotifier sets the notifier instance
func SetNotifier(n Notifier) {
	notifierMu.Lock()
	notifierInstance = n
	notifierMu.Unlock()
}

// NewNotifier builds the notifier selected by cfg.Notifier
func NewNotifier(cfg *config.Config) Notifier {
	switch cfg.Notifier {
	case "kafka":
		return NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaEmailTopic)
	case "smtp":
		return NewSMTPNotifier(cfg)
	}
	return LogNotifier{}
}

// notifyTimeout bounds one delivery attempt
const notifyTimeout = 10 * time.Second

var inflight sync.WaitGroup

// notify sends n in the background so a slow backend never holds up the
// caller. The send outlives the caller's context but not notifyTimeout.
// Failures are logged.
func notify(ctx context.Context, notifier Notifier, n Notification) {
	if notifier == nil || n.To == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		if err := notifier.Notify(ctx, n); err != nil {
			logger.L().Warn("failed to send notification",
				zap.String("template", n.Template),
				zap.String("to", n.To),
				zap.Error(err))
		}
	}()
}

// WaitForNotifications blocks until background sends finish or ctx is done
func WaitForNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogNotifier writes notifications to the application log
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger.L().Info("notification",
		zap.String("to", n.To),
		zap.String("subject", n.Subject),
		zap.String("template", n.Template),
		zap.Any("data", n.Data))
	return nil
}

// messageWriter is the subset of *kafka.Writer used by KafkaNotifier
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications as JSON to the email topic
type KafkaNotifier struct {
	writer messageWriter
}

// NewKafkaNotifier creates a producer for topic on brokers
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *KafkaNotifier) Notify(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	value, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.To),
		Value: value,
	})
}

// Close flushes and closes the underlying writer
func (p *KafkaNotifier) Close() error {
	return p.writer.Close()
}

// mailDialer is the subset of *gomail.Dialer used by SMTPNotifier
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "order_created"}}Hi, your order {{.order_id}} was placed. Total: {{.total}}.{{end}}
{{define "order_status_changed"}}Your order {{.order_id}} is now {{.status}}.{{if .tracking_number}} Tracking number: {{.tracking_number}}.{{end}}{{end}}
{{define "payment_recorded"}}We recorded payment {{.receipt_number}} of {{.amount}} {{.currency}} for your {{.reference_type}}.{{end}}
{{define "payment_updated"}}Payment {{.receipt_number}} is now {{.status}}.{{end}}
`))

// SMTPNotifier sends notifications directly over SMTP
type SMTPNotifier struct {
	from   string
	dialer mailDialer
}

// NewSMTPNotifier creates an SMTP sender from the application configuration
func NewSMTPNotifier(cfg *config.Config) *SMTPNotifier {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	d.SSL = cfg.SMTPPort == 465
	return &SMTPNotifier{from: cfg.SMTPFrom, dialer: d}
}

func (s *SMTPNotifier) Notify(ctx context.Context, n Notification) error {
	var body bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&body, n.Template, n.Data); err != nil {
		return fmt.Errorf("render %s: %w", n.Template, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", n.To)
	m.SetHeader("Subject", n.Subject)
	m.SetBody("text/plain", body.String())

	// gomail has no IO deadline once connected
	errc := make(chan error, 1)
	go func() { errc <- s.dialer.DialAndSend(m) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send to %s: %w", n.To, ctx.Err())
	}
}
