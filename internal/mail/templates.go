package mail

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template names.
const (
	TemplatePasswordReset = "password_reset"
	TemplateVerification  = "verification"
	TemplateWelcome       = "welcome"
	TemplateOverdueDigest = "overdue_digest"
)

// Data is what every template can reference.
type Data struct {
	FirstName string
	Link      string
	Count     int64
	ClientURL string
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]mailTemplate{
	TemplatePasswordReset: {
		subject: "Reset your MDMC password",
		body: template.Must(template.New(TemplatePasswordReset).Parse(`Hi {{.FirstName}},

Someone asked to reset the password for your MDMC account.
Open the link below within 10 minutes to choose a new one:

{{.Link}}

If you did not ask for this, you can ignore this e-mail.
`)),
	},
	TemplateVerification: {
		subject: "Verify your MDMC e-mail address",
		body: template.Must(template.New(TemplateVerification).Parse(`Hi {{.FirstName}},

Please confirm your e-mail address by opening this link within 24 hours:

{{.Link}}
`)),
	},
	TemplateWelcome: {
		subject: "Welcome to MDMC",
		body: template.Must(template.New(TemplateWelcome).Parse(`Hi {{.FirstName}},

Your MDMC account is ready. Sign in at {{.ClientURL}} to start working your leads.
`)),
	},
	TemplateOverdueDigest: {
		subject: "Leads waiting for a follow-up",
		body: template.Must(template.New(TemplateOverdueDigest).Parse(`Hi {{.FirstName}},

You have {{.Count}} {{if eq .Count 1}}lead{{else}}leads{{end}} with an overdue follow-up.
Review them at {{.ClientURL}}/leads?view=overdue
`)),
	},
}

// Render builds the message for template name addressed to to.
func Render(name, to string, data Data) (Message, error) {
	t, ok := templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", name)
	}
	var body bytes.Buffer
	if err := t.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{To: to, Subject: t.subject, Text: body.String()}, nil
}
