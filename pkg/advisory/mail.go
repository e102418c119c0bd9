package advisory

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/raykavin/forecastx/pkg/core"
)

// MailConfig contains the SMTP settings of the mail notifier
type MailConfig struct {
	Host     string
	Port     int
	From     string
	To       string
	Password string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mail sends each advisory as an email with the chart attached
type Mail struct {
	auth    smtp.Auth
	address string
	from    string
	to      string
	send    sendMailFunc
}

var _ core.Notifier = (*Mail)(nil)

func NewMail(cfg MailConfig) *Mail {
	return &Mail{
		auth:    smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Host),
		address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from:    cfg.From,
		to:      cfg.To,
		send:    smtp.SendMail,
	}
}

// NotifyAdvisory implements core.Notifier
func (m *Mail) NotifyAdvisory(_ context.Context, ticker string, image []byte, advisory string) error {
	message, err := m.message(ticker, image, advisory)
	if err != nil {
		return err
	}

	if err := m.send(m.address, m.auth, m.from, []string{m.to}, message); err != nil {
		return fmt.Errorf("send advisory mail: %w", err)
	}
	return nil
}

func (m *Mail) message(ticker string, image []byte, advisory string) ([]byte, error) {
	body := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(body)

	text, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(advisory)); err != nil {
		return nil, err
	}

	attachment, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"image/png"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf(`attachment; filename="%s.png"`, strings.ToLower(ticker))},
	})
	if err != nil {
		return nil, err
	}
	if _, err := attachment.Write([]byte(base64.StdEncoding.EncodeToString(image))); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	header := fmt.Sprintf("To: <%s>\r\nFrom: \"forecastx\" <%s>\r\nSubject: Chart analysis - %s\r\n"+
		"MIME-Version: 1.0\r\nContent-Type: multipart/mixed; boundary=%s\r\n\r\n",
		m.to, m.from, ticker, writer.Boundary())

	return append([]byte(header), body.Bytes()...), nil
}
