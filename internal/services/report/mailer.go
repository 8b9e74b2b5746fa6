package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"github.com/bobmcallan/keel/internal/models"
)

const chartContentID = "benchmark-chart"

// Send renders and delivers the daily report. Returns (false, nil) when
// email is disabled or credentials are missing, so a pipeline run never
// fails just because delivery is not configured. chartPNG may be nil.
func (s *Service) Send(report *models.DecisionReport, chartPNG []byte) (bool, error) {
	if !s.email.Enabled {
		s.logger.Info().Msg("Email disabled in config")
		return false, nil
	}
	if s.email.SenderEmail == "" || s.email.SenderPassword == "" {
		s.logger.Warn().Msg("Email credentials not configured")
		return false, nil
	}

	subject := fmt.Sprintf("Keel Daily Portfolio Intelligence - %s [%s]",
		report.GeneratedAt.Format("Jan 2, 2006"), report.Regime.Classification)

	cid := ""
	if chartPNG != nil {
		cid = chartContentID
	}
	html, err := s.RenderHTML(report, cid)
	if err != nil {
		return false, err
	}
	plain := s.RenderText(report)

	msg, err := buildMessage(s.email.SenderEmail, s.email.RecipientEmail, subject, plain, html, chartPNG)
	if err != nil {
		return false, err
	}

	addr := fmt.Sprintf("%s:%d", s.email.SMTPServer, s.email.SMTPPort)
	auth := smtp.PlainAuth("", s.email.SenderEmail, s.email.SenderPassword, s.email.SMTPServer)

	s.logger.Info().Str("recipient", s.email.RecipientEmail).Msg("Sending report")
	if err := smtp.SendMail(addr, auth, s.email.SenderEmail, []string{s.email.RecipientEmail}, msg); err != nil {
		return false, fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info().Msg("Email sent successfully")
	return true, nil
}

// buildMessage assembles a multipart/related message: a multipart/alternative
// body (plain + HTML) plus the inline chart image when present.
func buildMessage(from, to, subject, plain, html string, chartPNG []byte) ([]byte, error) {
	var buf bytes.Buffer
	related := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%q\r\n\r\n", related.Boundary())

	// Alternative part: plain text then HTML, least preferred first
	altBuf := &bytes.Buffer{}
	alt := multipart.NewWriter(altBuf)

	textPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprint(textPart, plain)

	htmlPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprint(htmlPart, html)

	if err := alt.Close(); err != nil {
		return nil, err
	}

	altWrapper, err := related.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary())},
	})
	if err != nil {
		return nil, err
	}
	if _, err := altWrapper.Write(altBuf.Bytes()); err != nil {
		return nil, err
	}

	if chartPNG != nil {
		imgPart, err := related.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"image/png"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-ID":                {fmt.Sprintf("<%s>", chartContentID)},
			"Content-Disposition":       {"inline; filename=\"benchmark.png\""},
		})
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(chartPNG)
		for len(encoded) > 0 {
			n := 76
			if len(encoded) < n {
				n = len(encoded)
			}
			fmt.Fprintf(imgPart, "%s\r\n", encoded[:n])
			encoded = encoded[n:]
		}
	}

	if err := related.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
