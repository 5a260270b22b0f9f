package graph

import (
	"encoding/base64"

	"production-report/internal/model"
)

// TokenResponse is the OAuth2 client credentials token response.
type TokenResponse struct {
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	AccessToken string `json:"access_token"`
}

// ErrorResponse is the error body returned by Graph and the login endpoint.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendMailRequest is the body of POST /users/{id}/sendMail.
type SendMailRequest struct {
	Message         Message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

// Message is a Graph message resource.
type Message struct {
	Subject      string       `json:"subject"`
	Body         ItemBody     `json:"body"`
	ToRecipients []Recipient  `json:"toRecipients"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// ItemBody is the message body.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Recipient wraps an email address.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// EmailAddress is a single address.
type EmailAddress struct {
	Address string `json:"address"`
}

// Attachment is a fileAttachment resource.
type Attachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
	ContentID    string `json:"contentId,omitempty"`
	IsInline     bool   `json:"isInline"`
}

const fileAttachmentType = "#microsoft.graph.fileAttachment"

// NewSendMailRequest converts a composed message into the Graph request body.
func NewSendMailRequest(msg *model.Message) *SendMailRequest {
	req := &SendMailRequest{
		Message: Message{
			Subject: msg.Subject,
			Body:    ItemBody{ContentType: "HTML", Content: msg.HTMLBody},
		},
		SaveToSentItems: true,
	}
	for _, addr := range msg.Recipients() {
		req.Message.ToRecipients = append(req.Message.ToRecipients, Recipient{EmailAddress: EmailAddress{Address: addr}})
	}
	for _, a := range msg.Attachments {
		req.Message.Attachments = append(req.Message.Attachments, Attachment{
			ODataType:    fileAttachmentType,
			Name:         a.Name,
			ContentType:  a.ContentType,
			ContentBytes: base64.StdEncoding.EncodeToString(a.Data),
			ContentID:    a.ContentID,
			IsInline:     a.Inline(),
		})
	}
	return req
}
