package mailer

import (
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"
)

// Lead is what sales needs to follow up on a booked demo appointment.
type Lead struct {
	FullName        string
	InstagramHandle string
	Email           string
	Phone           string
	Specialty       string
	UtmSource       string
	UtmCampaign     string
	PatientName     string
	Procedure       string
	DisplayDate     string
	DisplayTime     string
}

type IEmailService interface {
	SendAppointmentLead(toEmail string, lead Lead) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
}

func NewEmailService(host string, port int, username, password, senderEmail, senderName string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		senderName:  senderName,
	}
}

func (s *emailService) SendAppointmentLead(toEmail string, lead Lead) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", LeadSubject(lead))
	m.SetBody("text/html", LeadBody(lead))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send lead mail to %s: %w", toEmail, err)
	}
	return nil
}

func LeadSubject(lead Lead) string {
	who := lead.FullName
	if who == "" {
		who = "@" + strings.TrimPrefix(lead.InstagramHandle, "@")
	}
	return fmt.Sprintf("Novo agendamento na demo: %s", who)
}

// LeadBody renders the lead as an HTML table; empty fields are skipped.
func LeadBody(lead Lead) string {
	rows := []struct{ label, value string }{
		{"Nome", lead.FullName},
		{"Instagram", lead.InstagramHandle},
		{"E-mail", lead.Email},
		{"Telefone", lead.Phone},
		{"Especialidade", lead.Specialty},
		{"Origem", lead.UtmSource},
		{"Campanha", lead.UtmCampaign},
		{"Paciente simulado", lead.PatientName},
		{"Procedimento", lead.Procedure},
		{"Data", lead.DisplayDate},
		{"Horário", lead.DisplayTime},
	}

	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">`)
	b.WriteString(`<h2>Agendamento capturado na demo</h2><table cellpadding="4">`)
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td>%s</td></tr>", r.label, html.EscapeString(r.value))
	}
	b.WriteString(`</table></div>`)
	return b.String()
}
