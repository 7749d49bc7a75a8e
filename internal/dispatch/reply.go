package dispatch

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadflow/internal/ledger"
	"leadflow/internal/services"
)

// Reply is one outbound message.
type Reply struct {
	ItemID         string
	From           mail.Address
	To             mail.Address
	Subject        string
	InReplyTo      string
	Body           string
	AttachmentPath string
}

// Identity is how replies are signed and addressed.
type Identity struct {
	FromAddress   string
	SignatureName string
}

// BuildReply assembles the reply for rec. Missing recipient or document is a
// validation error.
func BuildReply(rec *ledger.Record, identity Identity) (Reply, error) {
	to := strings.TrimSpace(rec.Field("sender_email"))
	if to == "" {
		return Reply{}, services.Wrap(services.ErrValidation, "dispatch", "build reply", "sender_email missing", nil)
	}
	attachment := strings.TrimSpace(rec.Field("document_ref"))
	if attachment == "" {
		return Reply{}, services.Wrap(services.ErrValidation, "dispatch", "build reply", "document_ref missing", nil)
	}
	name := strings.TrimSpace(rec.Field("sender_name"))
	company := strings.TrimSpace(rec.Field("company_name"))
	if company == "" {
		company = "your company"
	}
	return Reply{
		ItemID:         rec.ID,
		From:           mail.Address{Name: identity.SignatureName, Address: identity.FromAddress},
		To:             mail.Address{Name: name, Address: to},
		Subject:        ReplySubject(rec.Field("subject")),
		InReplyTo:      strings.TrimSpace(rec.Field("message_ref")),
		Body:           ReplyBody(name, company, identity),
		AttachmentPath: attachment,
	}, nil
}

// ReplySubject prefixes "Re: " unless the subject already carries it.
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	if subject == "" {
		return "Re: your enquiry"
	}
	return "Re: " + subject
}

// ReplyBody is the plain-text cover note.
func ReplyBody(name, company string, identity Identity) string {
	greeting := "Hello"
	if name != "" {
		greeting += " " + name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s,\n\n", greeting)
	fmt.Fprintf(&b, "I am writing to you regarding %s's business opportunities and growth potential. ", company)
	b.WriteString("I'm attaching a personalized brochure for you to review.\n\n")
	if identity.FromAddress != "" {
		fmt.Fprintf(&b, "Feel free to reach out to me at %s if you have any questions.\n\n", identity.FromAddress)
	}
	b.WriteString("Thank you for your consideration!\n\nBest regards")
	if identity.SignatureName != "" {
		fmt.Fprintf(&b, ",\n%s", identity.SignatureName)
	}
	b.WriteString("\n")
	return b.String()
}

// Compose renders r as an RFC 5322 multipart message.
func Compose(r Reply, now time.Time) ([]byte, error) {
	attachment, err := os.ReadFile(r.AttachmentPath)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "dispatch", "read attachment", r.AttachmentPath, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	textPart, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	qp := quotedprintable.NewWriter(textPart)
	if _, err := qp.Write([]byte(strings.ReplaceAll(r.Body, "\n", "\r\n"))); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}

	fileName := filepath.Base(r.AttachmentPath)
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	attachHeader := textproto.MIMEHeader{}
	attachHeader.Set("Content-Type", contentType)
	attachHeader.Set("Content-Transfer-Encoding", "base64")
	attachHeader.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	attachPart, err := writer.CreatePart(attachHeader)
	if err != nil {
		return nil, err
	}
	if err := writeBase64Lines(attachPart, attachment); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	header := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&msg, "%s: %s\r\n", key, value)
		}
	}
	header("From", r.From.String())
	header("To", r.To.String())
	header("Subject", mime.QEncoding.Encode("utf-8", r.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", messageID(r.From.Address))
	header("In-Reply-To", r.InReplyTo)
	header("References", r.InReplyTo)
	header("MIME-Version", "1.0")
	header("Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": writer.Boundary()}))
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func messageID(from string) string {
	domain := "leadflow.local"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}

func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := 76
		if len(encoded) < n {
			n = len(encoded)
		}
		if _, err := w.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
