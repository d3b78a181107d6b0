package media

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestParseDataURI(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake png bytes"))

	mime, data, err := ParseDataURI("data:image/png;base64," + payload)
	if err != nil {
		t.Fatalf("ParseDataURI() error = %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("unexpected mime %q", mime)
	}
	if string(data) != "fake png bytes" {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestParseDataURIRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not a data uri", "https://example.com/a.png"},
		{"missing payload", "data:image/png;base64"},
		{"wrong encoding", "data:image/png;utf8,hello"},
		{"unsupported type", "data:application/pdf;base64,aGVsbG8="},
		{"bad base64", "data:image/png;base64,not-base64!!"},
		{"empty payload", "data:image/png;base64,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseDataURI(tt.in)
			if !errors.Is(err, ErrInvalidDataURI) {
				t.Fatalf("expected ErrInvalidDataURI, got %v", err)
			}
		})
	}
}

func TestObjectNameCarriesExtension(t *testing.T) {
	name := objectName("image/webp")
	if !strings.HasPrefix(name, "img_") {
		t.Fatalf("unexpected object name %q", name)
	}
	if !strings.HasSuffix(name, ".webp") {
		t.Fatalf("expected .webp suffix, got %q", name)
	}
}

func TestPublicObjectURL(t *testing.T) {
	got := publicObjectURL("https://cdn.example.com", "labdesk-media", "img-abc.png")
	if got != "https://cdn.example.com/labdesk-media/img-abc.png" {
		t.Fatalf("unexpected url %q", got)
	}
}
