package webhook

import (
	"errors"
	"testing"
)

func TestNormalizeTextMessage(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event": "messages.upsert",
		"data": {
			"key": {
				"id": "3EB0ABC123",
				"remoteJid": "5511999998888@s.whatsapp.net",
				"fromMe": false
			},
			"pushName": "Maria",
			"message": {"conversation": "comi arroz e feijão"}
		}
	}`)

	in, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if in.Kind != KindText {
		t.Errorf("Kind = %q, want text", in.Kind)
	}
	if in.Phone != "5511999998888" {
		t.Errorf("Phone = %q, want digits only", in.Phone)
	}
	if in.Text != "comi arroz e feijão" {
		t.Errorf("Text = %q", in.Text)
	}
	if in.MessageID != "3EB0ABC123" {
		t.Errorf("MessageID = %q", in.MessageID)
	}
	if in.PushName != "Maria" {
		t.Errorf("PushName = %q", in.PushName)
	}
}

func TestNormalizeExtendedText(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event": "MESSAGES_UPSERT",
		"data": {
			"key": {"id": "x1", "remoteJid": "5511988887777@s.whatsapp.net"},
			"message": {"extendedTextMessage": {"text": "sim"}}
		}
	}`)

	in, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if in.Kind != KindText || in.Text != "sim" {
		t.Errorf("got kind=%q text=%q, want text/sim", in.Kind, in.Text)
	}
}

func TestNormalizeImageMessage(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event": "messages.upsert",
		"data": {
			"key": {"id": "img1", "remoteJid": "5511988887777@s.whatsapp.net"},
			"message": {
				"imageMessage": {
					"url": "https://cdn.example.com/media/abc.jpg",
					"caption": "meu almoço",
					"mimetype": "image/jpeg"
				}
			}
		}
	}`)

	in, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if in.Kind != KindImage {
		t.Fatalf("Kind = %q, want image", in.Kind)
	}
	if in.ImageURL != "https://cdn.example.com/media/abc.jpg" {
		t.Errorf("ImageURL = %q", in.ImageURL)
	}
	if in.Caption != "meu almoço" {
		t.Errorf("Caption = %q", in.Caption)
	}
}

func TestNormalizeSkips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{
			name: "wrong event",
			body: `{"event": "messages.update", "data": {"key": {"remoteJid": "55119@s.whatsapp.net"}, "message": {"conversation": "oi"}}}`,
		},
		{
			name: "own outbound echo",
			body: `{"event": "messages.upsert", "data": {"key": {"remoteJid": "55119@s.whatsapp.net", "fromMe": true}, "message": {"conversation": "oi"}}}`,
		},
		{
			name: "group chat",
			body: `{"event": "messages.upsert", "data": {"key": {"remoteJid": "12036304@g.us"}, "message": {"conversation": "oi"}}}`,
		},
		{
			name: "missing sender",
			body: `{"event": "messages.upsert", "data": {"message": {"conversation": "oi"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Normalize([]byte(tt.body))
			var skip *SkipError
			if !errors.As(err, &skip) {
				t.Errorf("Normalize error = %v, want *SkipError", err)
			}
		})
	}
}

func TestNormalizeMalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := Normalize([]byte(`{"event": "messages.upsert"`))
	if err == nil {
		t.Fatal("Normalize accepted malformed JSON")
	}
	var skip *SkipError
	if errors.As(err, &skip) {
		t.Error("malformed JSON classified as skip, want hard error")
	}
}

func TestNormalizePrefersAltJID(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event": "messages.upsert",
		"data": {
			"key": {
				"id": "x",
				"remoteJid": "123456789@lid",
				"remoteJidAlt": "5511977776666@s.whatsapp.net"
			},
			"message": {"conversation": "oi"}
		}
	}`)

	in, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if in.Phone != "5511977776666" {
		t.Errorf("Phone = %q, want number from remoteJidAlt", in.Phone)
	}
}

func TestNormalizeUnsupportedMedia(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event": "messages.upsert",
		"data": {
			"key": {"id": "a1", "remoteJid": "5511988887777@s.whatsapp.net"},
			"message": {"audioMessage": {"url": "https://cdn.example.com/a.ogg"}}
		}
	}`)

	in, err := Normalize(body)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if in.Kind != KindUnsupported {
		t.Errorf("Kind = %q, want unsupported", in.Kind)
	}
}
