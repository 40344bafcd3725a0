// Package webhook receives provider callbacks and normalizes them into
// inbound messages the dispatcher can route.
package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageKind identifies the normalized content type of an inbound message.
type MessageKind string

const (
	KindText        MessageKind = "text"
	KindImage       MessageKind = "image"
	KindUnsupported MessageKind = "unsupported"
)

// Inbound is a provider-agnostic inbound message.
type Inbound struct {
	MessageID string
	Phone     string
	PushName  string
	Kind      MessageKind
	Text      string
	ImageURL  string
	Caption   string
	MimeType  string
}

// envelope mirrors the provider webhook payload. Only the fields the
// pipeline needs are declared.
type envelope struct {
	Event string `json:"event"`
	Data  struct {
		Key struct {
			ID           string `json:"id"`
			RemoteJid    string `json:"remoteJid"`
			RemoteJidAlt string `json:"remoteJidAlt"`
			FromMe       bool   `json:"fromMe"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage *struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
			ImageMessage *struct {
				URL      string `json:"url"`
				Caption  string `json:"caption"`
				MimeType string `json:"mimetype"`
			} `json:"imageMessage"`
		} `json:"message"`
	} `json:"data"`
}

// SkipError indicates a payload that is valid but not for us: wrong event
// type, our own outbound echo, or a group chat. Callers still ack these.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped webhook: " + e.Reason
}

// Normalize parses a raw webhook body into an Inbound message. It returns a
// *SkipError for payloads that should be acknowledged and dropped, and a
// plain error for malformed bodies.
func Normalize(body []byte) (*Inbound, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	event := strings.ToLower(env.Event)
	if event != "messages.upsert" && event != "messages_upsert" {
		return nil, &SkipError{Reason: "event " + env.Event}
	}
	if env.Data.Key.FromMe {
		return nil, &SkipError{Reason: "own message echo"}
	}

	jid := env.Data.Key.RemoteJidAlt
	if jid == "" {
		jid = env.Data.Key.RemoteJid
	}
	if strings.Contains(jid, "@g.us") {
		return nil, &SkipError{Reason: "group chat"}
	}

	phone := phoneFromJID(jid)
	if phone == "" {
		return nil, &SkipError{Reason: "no sender phone"}
	}

	in := &Inbound{
		MessageID: env.Data.Key.ID,
		Phone:     phone,
		PushName:  env.Data.PushName,
	}
	if in.PushName == "" {
		in.PushName = "Usuário"
	}

	msg := env.Data.Message
	switch {
	case msg.ImageMessage != nil:
		in.Kind = KindImage
		in.ImageURL = msg.ImageMessage.URL
		in.Caption = strings.TrimSpace(msg.ImageMessage.Caption)
		in.MimeType = msg.ImageMessage.MimeType
	case msg.Conversation != "":
		in.Kind = KindText
		in.Text = strings.TrimSpace(msg.Conversation)
	case msg.ExtendedTextMessage != nil && msg.ExtendedTextMessage.Text != "":
		in.Kind = KindText
		in.Text = strings.TrimSpace(msg.ExtendedTextMessage.Text)
	default:
		in.Kind = KindUnsupported
	}

	if in.Kind == KindText && in.Text == "" {
		in.Kind = KindUnsupported
	}

	return in, nil
}

// phoneFromJID strips the JID domain suffix and any remaining non-digit
// characters, leaving the bare phone number.
func phoneFromJID(jid string) string {
	s := strings.TrimSuffix(jid, "@s.whatsapp.net")
	s = strings.TrimSuffix(s, "@lid")

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
