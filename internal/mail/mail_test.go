package mail

import (
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	msg := Message{
		From:    "sender@example.com",
		To:      "recipient@example.com",
		Subject: "Mathematical Optimization Brief - 2026/03/15 JST",
		Text:    "# Brief\n",
		HTML:    "<html><body>Brief</body></html>",
	}
	m, err := buildMessage(msg)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if m == nil {
		t.Fatal("buildMessage returned nil message")
	}
}

func TestBuildMessage_InvalidAddresses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msg     Message
		wantErr string
	}{
		{
			name:    "bad sender",
			msg:     Message{From: "not an address", To: "recipient@example.com"},
			wantErr: "invalid sender",
		},
		{
			name:    "bad recipient",
			msg:     Message{From: "sender@example.com", To: "@@"},
			wantErr: "invalid recipient",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := buildMessage(tc.msg)
			if err == nil {
				t.Fatalf("buildMessage(%+v) = nil, want error", tc.msg)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestBuildMessage_TextOnly(t *testing.T) {
	t.Parallel()

	m, err := buildMessage(Message{
		From:    "sender@example.com",
		To:      "recipient@example.com",
		Subject: "plain",
		Text:    "no html part",
	})
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if m == nil {
		t.Fatal("buildMessage returned nil message")
	}
}
