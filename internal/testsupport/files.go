package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Message describes an inbound mail written into a spool directory.
type Message struct {
	ID      string
	From    string
	Subject string
	Body    string
	HTML    bool
}

// WriteMessage writes msg as an RFC 5322 file named <name>.eml under dir.
func WriteMessage(t testing.TB, dir, name string, msg Message) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", dir, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: sales@example.com\r\n")
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	if msg.ID != "" {
		fmt.Fprintf(&b, "Message-ID: %s\r\n", msg.ID)
	}
	fmt.Fprintf(&b, "Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n")
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")
	if msg.HTML {
		fmt.Fprintf(&b, "Content-Type: text/html; charset=utf-8\r\n")
	} else {
		fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	path := filepath.Join(dir, name+".eml")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
