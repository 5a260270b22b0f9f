package model

import (
	"strings"
	"time"
)

// ChartImage references the captured chart region.
type ChartImage struct {
	Path      string // file written by the capture step
	ContentID string // set when the image travels as an inline attachment
}

// Src returns the value used in the body's img tag: a cid: reference for an
// inline attachment, otherwise the path as a URL. Absolute paths, Windows
// drive and UNC paths included, become file: URLs with forward slashes.
func (c ChartImage) Src() string {
	if c.ContentID != "" {
		return "cid:" + c.ContentID
	}
	return fileURL(c.Path)
}

func fileURL(path string) string {
	p := strings.ReplaceAll(path, `\`, "/")
	switch {
	case strings.HasPrefix(p, "//"):
		return "file:" + p
	case strings.HasPrefix(p, "/"):
		return "file://" + p
	case len(p) >= 2 && p[1] == ':':
		return "file:///" + p
	}
	return p
}

// ReportDocument is the composed artifact of one run.
type ReportDocument struct {
	Title        string
	GeneratedAt  time.Time
	Dashboard    *StyledTable
	Stopped      *StyledTable
	LargeTonnage *StyledTable
	Chart        ChartImage
}

// Attachment is a file carried by an outbound message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	ContentID   string // non-empty for inline parts referenced from the body
}

// Inline reports whether the attachment is referenced from the HTML body.
func (a Attachment) Inline() bool {
	return a.ContentID != ""
}

// Message is what the delivery adapter hands to a mail transport.
type Message struct {
	Subject     string
	HTMLBody    string
	To          string // semicolon-joined recipient list
	Attachments []Attachment
}

// JoinRecipients joins addresses into the semicolon-separated form.
func JoinRecipients(addrs []string) string {
	return strings.Join(addrs, ";")
}

// Recipients splits the To line into individual addresses, skipping blanks.
func (m *Message) Recipients() []string {
	var out []string
	for _, addr := range strings.Split(m.To, ";") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
