package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/reelkit/core"
)

// Response 是所有接口的统一返回结构。
type Response struct {
	Status    string    `json:"status"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	h.write(w, status, &Response{Status: "success", Data: data, Timestamp: h.now()})
}

func (h *Handler) write(w http.ResponseWriter, status int, resp *Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug().Err(err).Msg("write response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.write(w, status, &Response{
		Status:    "error",
		Error:     &APIError{Code: code, Message: message},
		Timestamp: h.now(),
	})
}

// respondDomainError 把领域错误映射为 HTTP 状态码。
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, core.ErrorCodeInternalError
	switch {
	case core.IsInvalidInput(err):
		status, code = http.StatusBadRequest, core.ErrorCodeInvalidInput
	case core.IsNotFound(err):
		status, code = http.StatusNotFound, core.ErrorCodeNotFound
	case core.IsNotSupported(err):
		status, code = http.StatusNotImplemented, core.ErrorCodeNotSupported
	case core.IsUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusServiceUnavailable, core.ErrorCodeUnavailable
	case errors.Is(err, context.Canceled):
		status, code = http.StatusServiceUnavailable, "CANCELED"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn().Err(err).Int("status", status).Msg("request failed")
	}
	h.respondError(w, status, code, err.Error())
}
