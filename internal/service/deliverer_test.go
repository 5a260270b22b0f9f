package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"production-report/internal/client/graph"
	"production-report/internal/client/smtp"
	"production-report/internal/model"
)

func newTestDocument(t *testing.T) *model.ReportDocument {
	t.Helper()
	chart := filepath.Join(t.TempDir(), "daily_mail_image_2026-10-18.png")
	require.NoError(t, os.WriteFile(chart, pngBytes(), 0o644))

	return &model.ReportDocument{
		Title:       "Production Status 2026-10-18",
		GeneratedAt: fixedNow,
		Stopped: &model.StyledTable{
			Header: []model.FormattedCell{{Display: model.ColumnMachineNo}},
			Rows:   [][]model.FormattedCell{{{Display: "M-01"}}},
		},
		Chart: model.ChartImage{Path: chart},
	}
}

func TestDeliverer_Compose(t *testing.T) {
	cfg := newTestConfig(t)
	d, err := NewDeliverer(cfg, &fakeTransport{}, zerolog.Nop())
	require.NoError(t, err)

	doc := newTestDocument(t)
	d.Prepare(doc)
	require.True(t, strings.HasPrefix(doc.Chart.ContentID, "chart-"))

	msg, err := d.Compose(doc, "<p>body</p>")
	require.NoError(t, err)

	assert.Equal(t, "Production Status - 每日開機狀態 2026-10-18", msg.Subject)
	assert.Equal(t, "ops@example.com;lead@example.com", msg.To)
	assert.Equal(t, "<p>body</p>", msg.HTMLBody)

	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "daily_mail_image_2026-10-18.png", att.Name)
	assert.Equal(t, "image/png", att.ContentType)
	assert.Equal(t, doc.Chart.ContentID, att.ContentID)
	assert.Equal(t, pngBytes(), att.Data)
}

func TestDeliverer_SubjectUsesReportTimezone(t *testing.T) {
	cfg := newTestConfig(t)
	d, err := NewDeliverer(cfg, &fakeTransport{}, zerolog.Nop())
	require.NoError(t, err)

	doc := newTestDocument(t)
	// 17:00 UTC on the 17th is already the 18th in Taipei.
	doc.GeneratedAt = time.Date(2026, 10, 17, 17, 0, 0, 0, time.UTC)

	msg, err := d.Compose(doc, "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(msg.Subject, "2026-10-18"))
}

func TestDeliverer_PathImageWhenNotInline(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Mail.InlineImage = false
	d, err := NewDeliverer(cfg, &fakeTransport{}, zerolog.Nop())
	require.NoError(t, err)

	doc := newTestDocument(t)
	d.Prepare(doc)
	assert.Empty(t, doc.Chart.ContentID)
	assert.NotContains(t, doc.Chart.Src(), "cid:")

	msg, err := d.Compose(doc, "")
	require.NoError(t, err)
	assert.Empty(t, msg.Attachments)
}

func TestDeliverer_PrepareWithoutChart(t *testing.T) {
	cfg := newTestConfig(t)
	d, err := NewDeliverer(cfg, &fakeTransport{}, zerolog.Nop())
	require.NoError(t, err)

	doc := &model.ReportDocument{GeneratedAt: fixedNow}
	d.Prepare(doc)
	assert.Empty(t, doc.Chart.ContentID)
}

func TestDeliverer_AttachExcel(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Mail.AttachExcel = true
	d, err := NewDeliverer(cfg, &fakeTransport{}, zerolog.Nop())
	require.NoError(t, err)

	doc := newTestDocument(t)
	d.Prepare(doc)
	msg, err := d.Compose(doc, "")
	require.NoError(t, err)

	require.Len(t, msg.Attachments, 2)
	xlsx := msg.Attachments[1]
	assert.Equal(t, "production_status_2026-10-18.xlsx", xlsx.Name)
	assert.Equal(t, xlsxContentType, xlsx.ContentType)
	assert.False(t, xlsx.Inline())
	assert.True(t, strings.HasPrefix(string(xlsx.Data), "PK"))
}

func TestDeliverer_Deliver(t *testing.T) {
	cfg := newTestConfig(t)
	transport := &fakeTransport{}
	d, err := NewDeliverer(cfg, transport, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.Deliver(t.Context(), newTestDocument(t), "<p>body</p>"))
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "<p>body</p>", transport.sent[0].HTMLBody)
}

func TestDeliverer_DeliverFailureNotRetried(t *testing.T) {
	cfg := newTestConfig(t)
	cause := errors.New("relay rejected message")
	transport := &fakeTransport{err: cause}
	d, err := NewDeliverer(cfg, transport, zerolog.Nop())
	require.NoError(t, err)

	err = d.Deliver(t.Context(), newTestDocument(t), "")
	require.Error(t, err)
	assert.Len(t, transport.sent, 1)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.ErrorIs(t, err, cause)

	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "fake", derr.Transport)
	assert.Equal(t, "delivery via fake failed: relay rejected message", err.Error())
}

func TestDeliverer_ComposeFailureIsDeliveryError(t *testing.T) {
	cfg := newTestConfig(t)
	transport := &fakeTransport{}
	d, err := NewDeliverer(cfg, transport, zerolog.Nop())
	require.NoError(t, err)

	doc := newTestDocument(t)
	d.Prepare(doc)
	require.NoError(t, os.Remove(doc.Chart.Path))

	err = d.Deliver(t.Context(), doc, "")
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Empty(t, transport.sent)
}

func TestNewDeliverer_Errors(t *testing.T) {
	_, err := NewDeliverer(nil, &fakeTransport{}, zerolog.Nop())
	assert.Error(t, err)

	cfg := newTestConfig(t)
	_, err = NewDeliverer(cfg, nil, zerolog.Nop())
	assert.Error(t, err)

	cfg.Mail.SubjectTemplate = "{{.Date"
	_, err = NewDeliverer(cfg, &fakeTransport{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewTransport(t *testing.T) {
	cfg := newTestConfig(t)

	tr, err := NewTransport(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &smtp.Client{}, tr)
	assert.Equal(t, "smtp", tr.Name())

	cfg.Mail.Transport = "graph"
	tr, err = NewTransport(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &graph.Client{}, tr)
	assert.Equal(t, "graph", tr.Name())

	cfg.Mail.Transport = "outlook"
	_, err = NewTransport(cfg, zerolog.Nop())
	assert.Error(t, err)
}
