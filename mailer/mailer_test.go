package mailer

import (
	"bytes"
	"errors"
	"mime"
	"net/mail"
	"strings"
	"testing"

	"github.com/jordan-wright/email"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Host: "localhost", Port: 25}, false},
		{"missing host", Config{Port: 25}, true},
		{"bad port", Config{Host: "localhost", Port: 0}, true},
		{"port too large", Config{Host: "localhost", Port: 70000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRender_Attachments(t *testing.T) {
	m, err := New(Config{Host: "localhost", Port: 25, To: []string{"a@example.edu"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw, err := m.Render(Message{
		Body: "summary",
		Attachments: []Attachment{
			{Name: "QSREF_2026-03-02T17-00-00.csv", ContentType: ContentTypeCSV, Data: []byte("title,barcode\r\n")},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	from, err := msg.Header.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Address != DefaultFrom {
		t.Errorf("From = %v (%v), want %s", from, err, DefaultFrom)
	}
	to, err := msg.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "a@example.edu" {
		t.Errorf("To = %v (%v), want a@example.edu", to, err)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if err != nil || subject != DefaultSubject {
		t.Errorf("Subject = %q (%v), want %q", subject, err, DefaultSubject)
	}
	if !strings.Contains(string(raw), `filename="QSREF_2026-03-02T17-00-00.csv"`) {
		t.Error("message missing csv attachment")
	}
}

func TestSend_UsesMessageRecipients(t *testing.T) {
	m, err := New(Config{Host: "relay.example.edu", Port: 2525, From: "me@example.edu", To: []string{"default@example.edu"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var gotAddr string
	var gotTo []string
	m.send = func(addr string, e *email.Email) error {
		gotAddr = addr
		gotTo = e.To
		return nil
	}

	if err := m.Send(t.Context(), Message{To: []string{"x@example.edu", "y@example.edu"}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "relay.example.edu:2525" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 2 || gotTo[0] != "x@example.edu" {
		t.Errorf("to = %v", gotTo)
	}
}

func TestSend_NoRecipients(t *testing.T) {
	m, _ := New(Config{Host: "localhost", Port: 25})
	m.send = func(string, *email.Email) error {
		t.Fatal("send should not be called")
		return nil
	}
	if err := m.Send(t.Context(), Message{}); err == nil {
		t.Fatal("expected error without recipients")
	}
}

func TestSend_WrapsRelayError(t *testing.T) {
	m, _ := New(Config{Host: "localhost", Port: 25, To: []string{"a@example.edu"}})
	relayErr := errors.New("connection refused")
	m.send = func(string, *email.Email) error { return relayErr }

	err := m.Send(t.Context(), Message{})
	if !errors.Is(err, relayErr) {
		t.Errorf("err = %v, want wrapping %v", err, relayErr)
	}
}
