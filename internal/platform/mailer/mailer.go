package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

type Message struct {
	ToName      string
	ToAddress   string
	Subject     string
	TextContent string
	HTMLContent string
}

type Mailer interface {
	Send(ctx context.Context, messages []Message) error
}

// New picks the SendGrid mailer when a key is configured.
func New(apiKey, appName, from string, log *zap.Logger) Mailer {
	if apiKey == "" {
		return &ConsoleMailer{log: log}
	}
	return &SendgridMailer{
		key:        apiKey,
		from:       sgmail.NewEmail(appName, from),
		subjPrefix: "[" + appName + "] ",
		log:        log,
	}
}

type SendgridMailer struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	log        *zap.Logger
}

func (m *SendgridMailer) Send(ctx context.Context, messages []Message) error {
	var errs []error
	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.send(msg); err != nil {
			m.log.Warn("sendgrid delivery failed", zap.String("to", msg.ToAddress), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *SendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return v3
}

func (m *SendgridMailer) send(msg Message) error {
	req := sendgrid.GetRequest(m.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleMailer logs messages instead of delivering them.
type ConsoleMailer struct {
	log *zap.Logger
}

func NewConsoleMailer(log *zap.Logger) *ConsoleMailer {
	return &ConsoleMailer{log: log}
}

func (m *ConsoleMailer) Send(_ context.Context, messages []Message) error {
	for _, msg := range messages {
		m.log.Info("email",
			zap.String("to", msg.ToAddress),
			zap.String("subject", msg.Subject),
			zap.String("body", msg.TextContent),
		)
	}
	return nil
}
