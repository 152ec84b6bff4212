package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrz1836/postmark"
)

var (
	ErrInvalidMailerConfig = errors.New("invalid mailer configuration")
	ErrSendFailed          = errors.New("failed to send email")
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Tag     string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	From         string
	ReplyTo      string
}

type PostmarkMailer struct {
	client *postmark.Client
	cfg    PostmarkConfig
}

func NewPostmarkMailer(cfg PostmarkConfig) (*PostmarkMailer, error) {
	if cfg.ServerToken == "" || cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: postmark tokens are required", ErrInvalidMailerConfig)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrInvalidMailerConfig)
	}
	if cfg.ReplyTo == "" {
		cfg.ReplyTo = cfg.From
	}
	return &PostmarkMailer{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		cfg:    cfg,
	}, nil
}

func (m *PostmarkMailer) Send(ctx context.Context, msg Message) error {
	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:       m.cfg.From,
		ReplyTo:    m.cfg.ReplyTo,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TrackOpens: false,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when
// no Postmark credentials are configured.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.InfoContext(ctx, "email not sent, mailer disabled", "tag", msg.Tag, "subject", msg.Subject)
	return nil
}
