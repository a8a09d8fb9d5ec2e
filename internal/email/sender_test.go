package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessageIncludesHeadersAndBody(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{From: "alerts@vigilnet.example", Host: "smtp.vigilnet.example"})

	msg := string(s.buildMessage("soc@acme.example", "[VigilNet] HIGH alert", "detection details here"))

	assert.True(t, strings.HasPrefix(msg, "From: alerts@vigilnet.example\r\n"))
	assert.Contains(t, msg, "To: soc@acme.example\r\n")
	assert.Contains(t, msg, "Subject: [VigilNet] HIGH alert\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	assert.True(t, strings.HasSuffix(msg, "detection details here"))
}
