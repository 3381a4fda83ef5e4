// internal/app/system/mailer/mailer.go
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// Email is one outgoing message. TextBody is required; HTMLBody is optional.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends email through a single SMTP relay.
type Mailer struct {
	cfg  Config
	log  *zap.Logger
	send sendFunc
}

// New creates a Mailer. Authentication is used only when User is set
// (Mailpit and similar dev relays accept anonymous submission).
func New(cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: logger, send: smtp.SendMail}
}

// Send delivers e. The SMTP exchange itself cannot be cancelled, so ctx is
// only checked before dialing.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.To == "" {
		return errors.New("mailer: recipient is empty")
	}

	msg, err := m.build(e)
	if err != nil {
		return fmt.Errorf("mailer: build message: %w", err)
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	start := time.Now()
	if err := m.send(addr, auth, m.cfg.From, []string{e.To}, msg); err != nil {
		m.log.Error("email send failed",
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
			zap.Error(err))
		return fmt.Errorf("mailer: send: %w", err)
	}
	m.log.Info("email sent",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (m *Mailer) build(e Email) ([]byte, error) {
	var buf bytes.Buffer

	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.From}
	hdr := textproto.MIMEHeader{}
	hdr.Set("From", from.String())
	hdr.Set("To", e.To)
	hdr.Set("Subject", mime.QEncoding.Encode("utf-8", e.Subject))
	hdr.Set("Date", time.Now().Format(time.RFC1123Z))
	hdr.Set("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host))
	hdr.Set("MIME-Version", "1.0")

	if e.HTMLBody == "" {
		hdr.Set("Content-Type", `text/plain; charset="utf-8"`)
		writeHeader(&buf, hdr)
		buf.WriteString(e.TextBody)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	hdr.Set("Content-Type", "multipart/alternative; boundary="+mw.Boundary())

	// Headers go first; the multipart writer appends parts after them.
	var head bytes.Buffer
	writeHeader(&head, hdr)

	for _, part := range []struct {
		ctype string
		body  string
	}{
		{`text/plain; charset="utf-8"`, e.TextBody},
		{`text/html; charset="utf-8"`, e.HTMLBody},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return append(head.Bytes(), buf.Bytes()...), nil
}

func writeHeader(buf *bytes.Buffer, hdr textproto.MIMEHeader) {
	for _, k := range []string{"From", "To", "Subject", "Date", "Message-ID", "MIME-Version", "Content-Type"} {
		if v := hdr.Get(k); v != "" {
			fmt.Fprintf(buf, "%s: %s\r\n", k, v)
		}
	}
	buf.WriteString("\r\n")
}
