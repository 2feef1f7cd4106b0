package api

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
)

// errorBody is the error shape returned by the drive API
type errorBody struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Error, b.Message, b.Details} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// classifyStatus maps a non-2xx response to ErrUnauthenticated or a *cloud.FetchError.
//
// 401 is always unauthenticated. Other statuses are unauthenticated only when the
// body carries one of the drive's missing-session messages ("Not authenticated",
// "No tokens found"); everything else is a fetch failure.
func classifyStatus(action string, status int, body []byte) error {
	if status == nethttp.StatusUnauthorized {
		return fmt.Errorf("%s: %w", action, cloud.ErrUnauthenticated)
	}

	msg := strings.TrimSpace(string(body))
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.text() != "" {
		msg = eb.text()
	}
	if msg == "" {
		msg = nethttp.StatusText(status)
	}

	return classifyFailure(action, status, msg)
}

// classifyFailure maps an API error message (success=false or an error body)
func classifyFailure(action string, status int, msg string) error {
	if cloud.IsUnauthenticatedMessage(msg) {
		return fmt.Errorf("%s: %s: %w", action, msg, cloud.ErrUnauthenticated)
	}
	if msg == "" {
		msg = "drive reported failure"
	}
	return &cloud.FetchError{Action: action, StatusCode: status, Message: msg}
}
