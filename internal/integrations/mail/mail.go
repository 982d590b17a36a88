package mail

import "context"

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string

	// Optional PDF attachment.
	Attachment     []byte
	AttachmentName string
}

// Result is what ends up in the email_result response field. Delivery
// failures are data, not errors: the label request already succeeded.
type Result struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Error   bool   `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}
