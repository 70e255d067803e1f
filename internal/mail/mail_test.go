package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdmc/internal/config"
)

func TestRender(t *testing.T) {
	msg, err := Render(TemplatePasswordReset, "ada@example.com", Data{
		FirstName: "Ada",
		Link:      "http://localhost:3000/reset-password/abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Reset your MDMC password", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Ada,")
	assert.Contains(t, msg.Text, "/reset-password/abc")

	msg, err = Render(TemplateOverdueDigest, "ada@example.com", Data{FirstName: "Ada", Count: 1})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "1 lead with")

	msg, err = Render(TemplateOverdueDigest, "ada@example.com", Data{FirstName: "Ada", Count: 3})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "3 leads with")

	_, err = Render("nope", "ada@example.com", Data{})
	assert.Error(t, err)
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	sender := NewSender(config.SMTPConfig{})
	logSender, ok := sender.(*LogSender)
	require.True(t, ok)

	require.NoError(t, sender.Send(context.Background(), Message{To: "a@example.com", Subject: "hi"}))
	assert.Len(t, logSender.Sent(), 1)

	_, ok = NewSender(config.SMTPConfig{Host: "smtp.example.com", Port: 587}).(*SMTPSender)
	assert.True(t, ok)
}
