// Package smtp provides a mail transport for plain SMTP relays.
package smtp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"

	"production-report/internal/config"
	"production-report/internal/model"
)

// Client delivers report mails through an SMTP relay.
type Client struct {
	host      string
	port      int
	username  string
	password  string
	from      string
	timeout   time.Duration
	tlsPolicy gomail.TLSPolicy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewClient creates a new SMTP client.
func NewClient(cfg *config.SMTPConfig, logger zerolog.Logger) *Client {
	// Set default timeout if not specified
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	port := cfg.Port
	if port == 0 {
		port = 25
	}

	return &Client{
		host:      cfg.Host,
		port:      port,
		username:  cfg.Username,
		password:  cfg.Password,
		from:      cfg.From,
		timeout:   timeout,
		tlsPolicy: tlsPolicy(cfg.TLSPolicy),
		logger:    logger.With().Str("component", "smtp-client").Logger(),
		now:       time.Now,
	}
}

// tlsPolicy maps the mail.smtp.tls_policy setting. STARTTLS is used
// whenever the relay offers it unless configured otherwise.
func tlsPolicy(name string) gomail.TLSPolicy {
	switch name {
	case "mandatory":
		return gomail.TLSMandatory
	case "none":
		return gomail.NoTLS
	default:
		return gomail.TLSOpportunistic
	}
}

// Name identifies the transport in logs and errors.
func (c *Client) Name() string {
	return "smtp"
}

// Send delivers msg to every recipient of its To line in one SMTP transaction.
func (c *Client) Send(ctx context.Context, msg *model.Message) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}
	recipients := msg.Recipients()
	if len(recipients) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	m, err := BuildMessage(c.from, msg, c.now())
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	c.logger.Debug().
		Str("addr", addr).
		Int("recipients", len(recipients)).
		Int("attachments", len(msg.Attachments)).
		Msg("sending mail")

	// Unblock the conversation when ctx is canceled mid-transaction
	var release func() bool
	dial := func(dialCtx context.Context, network, address string) (net.Conn, error) {
		dialer := &net.Dialer{Timeout: c.timeout}
		conn, err := dialer.DialContext(dialCtx, network, address)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			conn.Close()
			return nil, err
		}
		release = context.AfterFunc(ctx, func() { conn.Close() })
		return conn, nil
	}
	defer func() {
		if release != nil {
			release()
		}
	}()

	mailer, err := c.newMailer(dial)
	if err != nil {
		return fmt.Errorf("invalid SMTP settings: %w", err)
	}

	if err := mailer.DialAndSendWithContext(ctx, m); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		c.logger.Error().Err(err).Str("addr", addr).Msg("SMTP transaction failed")
		return fmt.Errorf("SMTP delivery to %s failed: %w", addr, err)
	}

	c.logger.Info().Str("addr", addr).Int("recipients", len(recipients)).Msg("mail accepted by SMTP server")
	return nil
}

func (c *Client) newMailer(dial gomail.DialContextFunc) (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(c.port),
		gomail.WithTimeout(c.timeout),
		gomail.WithTLSPolicy(c.tlsPolicy),
		gomail.WithDialContextFunc(dial),
	}
	if c.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(c.username),
			gomail.WithPassword(c.password),
		)
	}
	return gomail.NewClient(c.host, opts...)
}
