package dispatch

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"leadflow/internal/config"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/stage"
	"leadflow/internal/textutil"
)

// Dispatcher delivers a reply.
type Dispatcher interface {
	Send(ctx context.Context, reply Reply) error
}

// New returns the dispatcher configured by cfg.
func New(cfg config.Dispatch) (Dispatcher, error) {
	switch cfg.Mode {
	case config.DispatchModeOutbox:
		return NewOutbox(cfg.OutboxDir), nil
	case config.DispatchModeSMTP:
		return NewSMTP(cfg), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "dispatch", "new", fmt.Sprintf("unsupported mode %q", cfg.Mode), nil)
	}
}

// Outbox writes each reply as <item>.eml into a directory.
type Outbox struct {
	dir string
	now func() time.Time
}

// NewOutbox constructs an outbox dispatcher.
func NewOutbox(dir string) *Outbox {
	return &Outbox{dir: dir, now: time.Now}
}

// PathFor returns the file a reply for id is written to.
func (o *Outbox) PathFor(id string) string {
	return filepath.Join(o.dir, textutil.FileStem(id, "reply")+".eml")
}

// Send implements Dispatcher.
func (o *Outbox) Send(ctx context.Context, reply Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := Compose(reply, o.now())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "dispatch", "prepare outbox", o.dir, err)
	}
	target := o.PathFor(reply.ItemID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, msg, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "dispatch", "write outbox", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrTransient, "dispatch", "write outbox", target, err)
	}
	return nil
}

// SMTP submits replies to a mail server, upgrading with STARTTLS when offered.
type SMTP struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
	now      func() time.Time
}

// NewSMTP constructs an SMTP dispatcher from cfg.
func NewSMTP(cfg config.Dispatch) *SMTP {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTP{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Send implements Dispatcher.
func (s *SMTP) Send(ctx context.Context, reply Reply) error {
	msg, err := Compose(reply, s.now())
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	dialCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return services.Wrap(services.ErrTransient, "dispatch", "smtp dial", addr, err)
	}
	deadline, _ := dialCtx.Deadline()
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return services.Wrap(services.ErrTransient, "dispatch", "smtp handshake", addr, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return services.Wrap(services.ErrTransient, "dispatch", "smtp starttls", addr, err)
		}
	}
	if s.username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return services.Wrap(services.ErrAuth, "dispatch", "smtp auth", s.username, err)
		}
	}
	if err := client.Mail(reply.From.Address); err != nil {
		return services.Wrap(services.ErrTransient, "dispatch", "smtp mail from", reply.From.Address, err)
	}
	if err := client.Rcpt(reply.To.Address); err != nil {
		return services.Wrap(services.ErrTransient, "dispatch", "smtp rcpt to", reply.To.Address, err)
	}
	w, err := client.Data()
	if err != nil {
		return services.Wrap(services.ErrTransient, "dispatch", "smtp data", addr, err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return services.Wrap(services.ErrTransient, "dispatch", "smtp write", addr, err)
	}
	if err := w.Close(); err != nil {
		return services.Wrap(services.ErrTransient, "dispatch", "smtp data close", addr, err)
	}
	return client.Quit()
}

// Executor is the dispatch stage. The caller must already have committed
// dispatch_attempted; every returned send error is retryable.
type Executor struct {
	dispatcher Dispatcher
	identity   Identity
	logger     *slog.Logger
}

// NewExecutor constructs the dispatch stage.
func NewExecutor(dispatcher Dispatcher, identity Identity, logger *slog.Logger) *Executor {
	return &Executor{dispatcher: dispatcher, identity: identity, logger: logging.NewComponentLogger(logger, "dispatch")}
}

// Stage implements stage.Executor.
func (e *Executor) Stage() ledger.Stage { return ledger.StageDispatch }

// Execute implements stage.Executor.
func (e *Executor) Execute(ctx context.Context, rec *ledger.Record) stage.Outcome {
	reply, err := BuildReply(rec, e.identity)
	if err != nil {
		return stage.FromError(err)
	}
	if err := e.dispatcher.Send(ctx, reply); err != nil {
		return stage.Retryable(services.Details(err).Message, err)
	}
	logging.WithContext(ctx, e.logger).Info("reply sent",
		logging.String("dispatched_to", reply.To.Address),
		logging.String("subject", reply.Subject),
		logging.String(logging.FieldEventType, "reply_sent"),
	)
	return stage.Advance(ledger.Payload{"dispatched_to": strings.ToLower(reply.To.Address)})
}
