package utils

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"scraphub/config"
)

// SendEmail delivers an HTML email. SendGrid is used when an API key is
// configured; otherwise it falls back to plain SMTP.
func SendEmail(to []string, subject string, htmlBody string) error {
	if config.AppConfig.SendgridApiKey != "" {
		return sendViaSendgrid(to, subject, htmlBody)
	}
	return sendViaSmtp(to, subject, htmlBody)
}

func sendViaSendgrid(to []string, subject string, htmlBody string) error {
	from := mail.NewEmail("ScrapHub", config.AppConfig.EmailSender)
	client := sendgrid.NewSendClient(config.AppConfig.SendgridApiKey)

	for _, recipient := range to {
		message := mail.NewSingleEmail(from, subject, mail.NewEmail("", recipient), "", htmlBody)
		resp, err := client.Send(message)
		if err != nil {
			log.Printf("Error sending email via SendGrid: %v", err)
			return err
		}
		if resp.StatusCode >= 400 {
			log.Printf("SendGrid rejected email to %s: %d %s", recipient, resp.StatusCode, resp.Body)
			return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
		}
	}
	return nil
}

func sendViaSmtp(to []string, subject string, htmlBody string) error {
	smtpHost := "smtp.gmail.com"
	smtpPort := "587"

	from := config.AppConfig.EmailSender
	password := config.AppConfig.EmailPassword

	msg := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n"
	msg += fmt.Sprintf("From: ScrapHub <%s>\r\n", from)
	msg += fmt.Sprintf("To: %s\r\n", strings.Join(to, ","))
	msg += fmt.Sprintf("Subject: %s\r\n\r\n", subject)
	msg += htmlBody

	auth := smtp.PlainAuth("", from, password, smtpHost)

	err := smtp.SendMail(smtpHost+":"+smtpPort, auth, from, to, []byte(msg))
	if err != nil {
		log.Printf("Error sending email via SMTP: %v", err)
		return err
	}
	return nil
}

// SendOTPEmail sends the verification code. The code never appears in any
// API response; email is its only channel.
func SendOTPEmail(code, email string) error {
	body := fmt.Sprintf(`
		<html>
			<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
				<div style="max-width: 500px; margin: auto; background-color: #ffffff; border-radius: 8px; padding: 30px;">
					<h2 style="color: #2e7d32; text-align: center;">ScrapHub Email Verification</h2>
					<p style="font-size: 16px; color: #555555; text-align: center;">Your verification code is:</p>
					<h1 style="text-align: center; color: #2e7d32; font-size: 40px; margin: 20px 0;">%s</h1>
					<p style="font-size: 14px; color: #999999; text-align: center;">The code expires in %d minutes. Do not share it with anyone.</p>
				</div>
			</body>
		</html>
	`, code, config.AppConfig.OtpTTLMinutes)

	return SendEmail([]string{email}, "Your ScrapHub verification code", body)
}

// SendDecisionEmail notifies a user about a KYC outcome.
func SendDecisionEmail(email, status, reason string) error {
	headline := "Your account has been verified"
	detail := "You can now use all features available to your role."
	if status != "VERIFIED" {
		headline = "We could not verify your account"
		detail = reason
	}

	body := fmt.Sprintf(`
		<html>
			<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
				<div style="max-width: 500px; margin: auto; background-color: #ffffff; border-radius: 8px; padding: 30px;">
					<h2 style="color: #2e7d32; text-align: center;">%s</h2>
					<p style="font-size: 15px; color: #555555; text-align: center;">%s</p>
				</div>
			</body>
		</html>
	`, headline, detail)

	return SendEmail([]string{email}, "ScrapHub account verification update", body)
}
