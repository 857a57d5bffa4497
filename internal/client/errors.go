package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/sustena-platforms/julctl/internal/models"
)

func transportError(op string, err error) error {
	var ne net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
	return &models.NetworkError{Op: op, Timeout: timeout, Err: err}
}

// statusError classifies a non-success response. Client errors other than
// 404, 408 and 429 are business-rule rejections; everything else is a network
// failure.
func statusError(op string, status int, body []byte) error {
	msg := rejectionMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusNotFound,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests:
		return &models.NetworkError{Op: op, StatusCode: status, Err: errors.New(msg)}
	case status >= 400 && status < 500:
		return &models.ServerRejection{Op: op, StatusCode: status, Message: msg}
	default:
		return &models.NetworkError{Op: op, StatusCode: status, Err: errors.New(msg)}
	}
}

// rejectionMessage extracts the human-readable message from an error body,
// which is either plain text or a JSON object with an error or message field.
func rejectionMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		var obj struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &obj); err == nil {
			if obj.Error != "" {
				return obj.Error
			}
			if obj.Message != "" {
				return obj.Message
			}
		}
	}
	const maxLen = 512
	if len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}

func malformed(op, format string, args ...any) error {
	return &models.NetworkError{Op: op, Err: errors.Wrapf(models.ErrMalformedResponse, format, args...)}
}
