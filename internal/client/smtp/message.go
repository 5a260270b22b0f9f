package smtp

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"production-report/internal/model"
)

// BuildMessage converts msg into a mail from the given sender. Inline
// attachments are embedded next to the HTML body and referenced by
// Content-ID; the rest travel as regular attachments.
func BuildMessage(from string, msg *model.Message, date time.Time) (*gomail.Msg, error) {
	m := gomail.NewMsg(gomail.WithNoDefaultUserAgent())
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := m.To(msg.Recipients()...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(date)
	m.SetMessageIDWithValue(uuid.NewString() + "@" + domainOf(from))
	m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)

	for _, a := range msg.Attachments {
		opts := []gomail.FileOption{gomail.WithFileContentType(gomail.ContentType(a.ContentType))}
		if a.Inline() {
			opts = append(opts, gomail.WithFileContentID("<"+a.ContentID+">"))
			if err := m.EmbedReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
				return nil, fmt.Errorf("failed to embed %s: %w", a.Name, err)
			}
			continue
		}
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Name, err)
		}
	}

	return m, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return strings.Trim(addr[i+1:], "> ")
	}
	return "localhost"
}
