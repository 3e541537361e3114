package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var botToken = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Kind names the class of a failed call for logs and metrics: timeout, dns,
// dial, tls, http_4xx, http_5xx or unknown. status is the HTTP status of
// the reply when the caller knows it, 0 otherwise.
func Kind(err error, status int) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var dns *net.DNSError
	if errors.As(err, &dns) {
		if dns.IsTimeout {
			return "timeout"
		}
		return "dns"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		return "dial"
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return "tls"
	}
	if status == 0 {
		status = trailingStatus(err.Error())
	}
	switch {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// trailingStatus reads the "(403)" suffix the Bot API client appends to
// error descriptions.
func trailingStatus(msg string) int {
	open := strings.LastIndex(msg, "(")
	if open < 0 || !strings.HasSuffix(msg, ")") {
		return 0
	}
	code, err := strconv.Atoi(strings.TrimSpace(msg[open+1 : len(msg)-1]))
	if err != nil {
		return 0
	}
	return code
}

// Redact hides bot tokens that request URLs leak into error messages.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return botToken.ReplaceAllString(err.Error(), "bot<redacted>")
}
