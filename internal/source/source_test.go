package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"leadflow/internal/logging"
	"leadflow/internal/testsupport"
)

func TestSpoolFetchNew(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteMessage(t, dir, "b", testsupport.Message{
		ID:      "<b-002@acme>",
		From:    "Jane Doe <jane@acme-tools.com>",
		Subject: "Brochure request",
		Body:    "Please send your brochure.",
	})
	testsupport.WriteMessage(t, dir, "a", testsupport.Message{
		ID:      "<a-001@acme>",
		From:    "Sam Roe <sam@roe.example>",
		Subject: "=?utf-8?q?Cat=C3=A1logo?=",
		Body:    "<html><body><p>Send the <b>catalogue</b></p><script>x()</script></body></html>",
		HTML:    true,
	})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	spool := NewSpool(dir, logging.NewNop())
	messages, err := spool.FetchNew(context.Background())
	if err != nil {
		t.Fatalf("FetchNew returned error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	first := messages[0]
	if first.ID != "a-001@acme" || first.MessageRef != "<a-001@acme>" {
		t.Fatalf("unexpected id/ref %q %q", first.ID, first.MessageRef)
	}
	if first.Subject != "Catálogo" {
		t.Fatalf("subject not decoded: %q", first.Subject)
	}
	if first.Body != "Send the catalogue" {
		t.Fatalf("html body not converted: %q", first.Body)
	}
	intake := messages[1].Intake()
	if intake["sender"] != "Jane Doe <jane@acme-tools.com>" || intake["body"] != "Please send your brochure." {
		t.Fatalf("unexpected intake %#v", intake)
	}

	again, err := spool.FetchNew(context.Background())
	if err != nil || len(again) != 2 {
		t.Fatalf("spool must not consume messages: %d, %v", len(again), err)
	}
}

func TestSpoolMissingDirIsEmpty(t *testing.T) {
	messages, err := NewSpool(filepath.Join(t.TempDir(), "absent"), logging.NewNop()).FetchNew(context.Background())
	if err != nil || len(messages) != 0 {
		t.Fatalf("expected empty result, got %d, %v", len(messages), err)
	}
}

func TestParseWithoutMessageIDUsesContentHash(t *testing.T) {
	raw := []byte("From: Jane Doe <jane@acme-tools.com>\r\nSubject: hi\r\n\r\nbody\r\n")
	first, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	second, _ := Parse(raw)
	if len(first.ID) != 64 || first.ID != second.ID {
		t.Fatalf("expected a stable sha256 id, got %q / %q", first.ID, second.ID)
	}
	if first.MessageRef != "" {
		t.Fatalf("unexpected message ref %q", first.MessageRef)
	}
}

func TestParseMultipartPrefersPlainText(t *testing.T) {
	raw := strings.Join([]string{
		"From: Jane Doe <jane@acme-tools.com>",
		"Subject: Brochure",
		"Message-ID: <mp-1@acme>",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="XYZ"`,
		"",
		"--XYZ",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html version</p>",
		"--XYZ",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		"cGxhaW4gdmVyc2lvbg==",
		"--XYZ--",
		"",
	}, "\r\n")
	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if msg.Body != "plain version" {
		t.Fatalf("unexpected body %q", msg.Body)
	}
}

func TestParseMultipartHTMLOnly(t *testing.T) {
	raw := strings.Join([]string{
		"From: Jane Doe <jane@acme-tools.com>",
		"Subject: Brochure",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="B"`,
		"",
		"--B",
		"Content-Type: text/html; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"<div>Need a brochure=2E</div>",
		"--B--",
		"",
	}, "\r\n")
	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if msg.Body != "Need a brochure." {
		t.Fatalf("unexpected body %q", msg.Body)
	}
}
