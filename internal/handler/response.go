package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dealdocs/internal/auth"
	"dealdocs/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError выбирает статус по виду ошибки; детали внутренних ошибок наружу не отдаются
func writeError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := kind.HTTPStatus()

	detail := errorDetail{Code: string(kind)}
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		detail.Message = de.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		detail.Fields = ve.Fields
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		detail.Message = http.StatusText(status)
	} else {
		log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	if detail.Message == "" {
		detail.Message = http.StatusText(status)
	}

	writeJSON(w, status, errorBody{Error: detail})
}

// currentUser возвращает ID пользователя, проставленный auth middleware
func currentUser(r *http.Request) string {
	if user, ok := auth.UserFromContext(r.Context()); ok {
		return user.ID
	}
	return ""
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.Invalid("ParseParam", "invalid "+name)
	}
	return id, nil
}

// decodeJSON читает тело запроса; пустое тело допустимо и оставляет dst без изменений
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.Invalid("DecodeRequest", "invalid JSON body")
	}
	return nil
}
