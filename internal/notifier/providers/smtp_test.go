package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("bot@example.com", "me@example.com", "评论报告", "<p>html</p>", "plain"))

	assert.True(t, strings.HasPrefix(msg, "From: bot@example.com\r\nTo: me@example.com\r\n"))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.NotContains(t, msg, "评论报告")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=\"utf-8\"\r\n\r\nplain\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=\"utf-8\"\r\n\r\n<p>html</p>\r\n")
	assert.True(t, strings.HasSuffix(msg, "--boundary42--\r\n"))
}

func TestBuildMessageASCIISubject(t *testing.T) {
	msg := string(BuildMessage("a", "b", "Daily comments", "", ""))
	assert.Contains(t, msg, "Subject: Daily comments\r\n")
}
