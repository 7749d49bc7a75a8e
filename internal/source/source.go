package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/textutil"
)

// Source yields the messages currently available. It must be safe to call
// repeatedly and must not consume messages.
type Source interface {
	FetchNew(ctx context.Context) ([]Message, error)
}

// Message is one parsed inbound message.
type Message struct {
	ID         string
	Sender     string
	Subject    string
	Body       string
	MessageRef string
	Path       string
}

// Intake returns the payload stored when the record is created.
func (m Message) Intake() ledger.Payload {
	return ledger.Payload{
		"sender":      m.Sender,
		"subject":     m.Subject,
		"body":        m.Body,
		"message_ref": m.MessageRef,
	}
}

// Spool reads *.eml files from a directory.
type Spool struct {
	dir    string
	logger *slog.Logger
}

// NewSpool constructs a spool source over dir.
func NewSpool(dir string, logger *slog.Logger) *Spool {
	return &Spool{dir: dir, logger: logging.NewComponentLogger(logger, "source")}
}

// FetchNew implements Source. Files that cannot be parsed are logged and
// skipped; an unreadable directory is an error.
func (s *Spool) FetchNew(ctx context.Context) ([]Message, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "source", "read spool", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".eml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	messages := make([]Message, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return messages, err
		}
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.skip(ctx, path, err)
			continue
		}
		msg, err := Parse(data)
		if err != nil {
			s.skip(ctx, path, err)
			continue
		}
		msg.Path = path
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Spool) skip(ctx context.Context, path string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "spool file skipped", "source_skip",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldImpact, "message not ingested until the file is fixed"),
	)
}

// Parse decodes one RFC 5322 message. The id is the Message-ID without
// angle brackets, or a SHA-256 of the raw bytes when the header is absent.
func Parse(data []byte) (Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return Message{}, services.Wrap(services.ErrValidation, "source", "parse message", "", err)
	}
	decoder := new(mime.WordDecoder)
	decode := func(value string) string {
		if decoded, err := decoder.DecodeHeader(value); err == nil {
			value = decoded
		}
		return strings.TrimSpace(value)
	}

	ref := strings.TrimSpace(msg.Header.Get("Message-ID"))
	id := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(ref, "<"), ">"))
	if id == "" {
		sum := sha256.Sum256(data)
		id = hex.EncodeToString(sum[:])
	}

	body, err := readBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return Message{}, services.Wrap(services.ErrValidation, "source", "read body", id, err)
	}
	return Message{
		ID:         id,
		Sender:     decode(msg.Header.Get("From")),
		Subject:    decode(msg.Header.Get("Subject")),
		Body:       body,
		MessageRef: ref,
	}, nil
}

// readBody returns the plain-text body, preferring text/plain over text/html
// in multipart messages.
func readBody(contentType, encoding string, r io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}
	if strings.HasPrefix(mediaType, "multipart/") {
		return readMultipart(multipart.NewReader(r, params["boundary"]))
	}
	data, err := io.ReadAll(transferDecoder(encoding, r))
	if err != nil {
		return "", err
	}
	if mediaType == "text/html" {
		return textutil.HTMLToText(bytes.NewReader(data))
	}
	return strings.TrimSpace(string(data)), nil
}

func readMultipart(reader *multipart.Reader) (string, error) {
	var plain, html string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if part.FileName() != "" {
			continue
		}
		partType := part.Header.Get("Content-Type")
		mediaType, _, _ := mime.ParseMediaType(partType)
		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			text, err := readBody(partType, "", part)
			if err != nil {
				return "", err
			}
			if plain == "" {
				plain = text
			}
		case mediaType == "text/plain" || mediaType == "":
			data, err := io.ReadAll(transferDecoder(part.Header.Get("Content-Transfer-Encoding"), part))
			if err != nil {
				return "", err
			}
			if plain == "" {
				plain = strings.TrimSpace(string(data))
			}
		case mediaType == "text/html":
			data, err := io.ReadAll(transferDecoder(part.Header.Get("Content-Transfer-Encoding"), part))
			if err != nil {
				return "", err
			}
			if html == "" {
				html = string(data)
			}
		}
	}
	if plain != "" {
		return plain, nil
	}
	if html != "" {
		return textutil.HTMLToText(strings.NewReader(html))
	}
	return "", nil
}

// transferDecoder handles encodings multipart.Reader does not already strip.
func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
