package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bnema/pathfinder/internal/domain"
)

// apiError covers the error bodies of both GoTrue and PostgREST.
type apiError struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func statusError(op string, status int, body []byte) error {
	var payload apiError
	_ = json.Unmarshal(body, &payload)

	message := payload.text()
	if message == "" {
		message = http.StatusText(status)
	}
	return domain.NewError(kindForStatus(status, payload), op, message)
}

func kindForStatus(status int, payload apiError) domain.ErrorKind {
	switch {
	case payload.Code == "PGRST116":
		return domain.KindNotFound
	case payload.Code == "23505",
		payload.ErrorCode == "user_already_exists",
		payload.ErrorCode == "email_exists":
		return domain.KindConflict
	case payload.Error == "invalid_grant",
		payload.ErrorCode == "invalid_credentials",
		status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		return domain.KindAuthentication
	case status == http.StatusNotFound:
		return domain.KindNotFound
	case status == http.StatusConflict:
		return domain.KindConflict
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return domain.KindTimeout
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return domain.KindNetwork
	default:
		return domain.KindValidation
	}
}

// transportError classifies failures that never produced a response.
// Cancellation stays a bare context error so callers can tell it apart.
func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		kind = domain.KindNetwork
	}
	return domain.WrapError(kind, op, err)
}
