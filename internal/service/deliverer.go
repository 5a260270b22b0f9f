package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"production-report/internal/client/graph"
	"production-report/internal/client/smtp"
	"production-report/internal/config"
	"production-report/internal/model"
	"production-report/internal/report/excel"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Transport is the mail transport contract the deliverer depends on.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg *model.Message) error
}

// ErrDelivery matches every DeliveryError.
var ErrDelivery = errors.New("delivery failed")

// DeliveryError reports a failed send. The report itself was built.
type DeliveryError struct {
	Transport string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %v", e.Transport, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

// Deliverer composes the outbound message and hands it to the transport.
// A failed send is reported once and never retried.
type Deliverer struct {
	transport   Transport
	recipients  string
	subject     *template.Template
	inlineImage bool
	attachExcel bool
	excel       *excel.Writer
	timezone    *time.Location
	logger      zerolog.Logger
}

// NewDeliverer creates a new Deliverer from the mail settings in cfg.
func NewDeliverer(cfg *config.Config, transport Transport, logger zerolog.Logger) (*Deliverer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if transport == nil {
		return nil, fmt.Errorf("mail transport is required")
	}

	subject, err := template.New("subject").Option("missingkey=error").Parse(cfg.Mail.SubjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid subject template: %w", err)
	}

	tz := cfg.Location()
	return &Deliverer{
		transport:   transport,
		recipients:  model.JoinRecipients(cfg.Mail.Recipients),
		subject:     subject,
		inlineImage: cfg.Mail.InlineImage,
		attachExcel: cfg.Mail.AttachExcel,
		excel:       excel.NewWriter(tz),
		timezone:    tz,
		logger:      logger.With().Str("component", "deliverer").Str("transport", transport.Name()).Logger(),
	}, nil
}

// Prepare assigns the chart a Content-ID when it travels inline, so the
// assembled body references it as cid:<id>.
func (d *Deliverer) Prepare(doc *model.ReportDocument) {
	if d.inlineImage && doc.Chart.Path != "" && doc.Chart.ContentID == "" {
		doc.Chart.ContentID = "chart-" + uuid.NewString()
	}
}

// Compose builds the message for doc with the assembled body.
func (d *Deliverer) Compose(doc *model.ReportDocument, body string) (*model.Message, error) {
	date := doc.GeneratedAt.In(d.timezone).Format(DateLayout)

	var subject bytes.Buffer
	if err := d.subject.Execute(&subject, struct{ Date string }{Date: date}); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}

	msg := &model.Message{
		Subject:  subject.String(),
		HTMLBody: body,
		To:       d.recipients,
	}

	if doc.Chart.ContentID != "" {
		data, err := os.ReadFile(doc.Chart.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read chart image: %w", err)
		}
		msg.Attachments = append(msg.Attachments, model.Attachment{
			Name:        filepath.Base(doc.Chart.Path),
			ContentType: "image/png",
			Data:        data,
			ContentID:   doc.Chart.ContentID,
		})
	}

	if d.attachExcel {
		data, err := d.excel.Bytes(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to build Excel attachment: %w", err)
		}
		msg.Attachments = append(msg.Attachments, model.Attachment{
			Name:        fmt.Sprintf("production_status_%s.xlsx", date),
			ContentType: xlsxContentType,
			Data:        data,
		})
	}

	return msg, nil
}

// Deliver composes and sends one message. Composition problems and
// transport failures both surface as a DeliveryError.
func (d *Deliverer) Deliver(ctx context.Context, doc *model.ReportDocument, body string) error {
	msg, err := d.Compose(doc, body)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to compose message")
		return &DeliveryError{Transport: d.transport.Name(), Err: err}
	}

	d.logger.Info().
		Str("subject", msg.Subject).
		Str("to", msg.To).
		Int("attachments", len(msg.Attachments)).
		Msg("sending report")

	if err := d.transport.Send(ctx, msg); err != nil {
		d.logger.Error().Err(err).Msg("failed to send report")
		return &DeliveryError{Transport: d.transport.Name(), Err: err}
	}

	d.logger.Info().Msg("report sent")
	return nil
}

// NewTransport creates the transport selected by mail.transport.
func NewTransport(cfg *config.Config, logger zerolog.Logger) (Transport, error) {
	switch cfg.Mail.Transport {
	case "smtp":
		return smtp.NewClient(&cfg.Mail.SMTP, logger), nil
	case "graph":
		return graph.NewClient(&cfg.Mail.Graph, &cfg.HTTP.Retry, logger), nil
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.Mail.Transport)
	}
}
