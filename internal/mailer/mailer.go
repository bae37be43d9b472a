package mailer

import (
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"cache2k25/internal/dto"
)

type Config struct {
	Host     string
	Port     int
	From     string
	Password string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Mailer struct {
	cfg  Config
	log  *zerolog.Logger
	send sendFunc
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

// ConfirmationMessage renders the RFC 822 message for a saved registration.
func ConfirmationMessage(from string, msg dto.RegistrationSavedMessage) []byte {
	subject := fmt.Sprintf("Registration confirmed: %s", msg.EventName)

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\r\n\r\n", msg.ParticipantName)
	fmt.Fprintf(&body, "Your registration for %s is confirmed.\r\n\r\n", msg.EventName)
	fmt.Fprintf(&body, "Registration ID: %s\r\n", msg.RegistrationID)
	fmt.Fprintf(&body, "Amount paid: %s\r\n", strconv.FormatFloat(msg.TotalAmount, 'f', 2, 64))
	if msg.TransactionID != "" {
		fmt.Fprintf(&body, "Transaction ID: %s\r\n", msg.TransactionID)
	}
	body.WriteString("\r\nSee you at the fest!\r\n")

	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, msg.Email, subject, body.String(),
	))
}

func (m *Mailer) SendConfirmation(msg dto.RegistrationSavedMessage) error {
	if msg.Email == "" {
		return fmt.Errorf("registration %s has no email", msg.RegistrationID)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)

	if err := m.send(addr, auth, m.cfg.From, []string{msg.Email}, ConfirmationMessage(m.cfg.From, msg)); err != nil {
		m.log.Warn().Err(err).Str("email", msg.Email).Msg("failed to send confirmation email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().
		Str("email", msg.Email).
		Str("registration_id", msg.RegistrationID).
		Msg("confirmation email sent")
	return nil
}
