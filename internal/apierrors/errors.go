// Пакет apierrors — конструкторы стандартных ошибок HTTP-поверхности шлюза.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
package apierrors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Коды ошибок HTTP-поверхности.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidFacet        = "INVALID_FACET"
	CodeInvalidTime         = "INVALID_TIME"
	CodeInvalidBBox         = "INVALID_BBOX"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeImmutable           = "IMMUTABLE"
	CodeBackendUnavailable  = "BACKEND_UNAVAILABLE"
	CodeBrokerUnavailable   = "BROKER_UNAVAILABLE"
	CodeInternal            = "INTERNAL"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Kind — тег ошибки домена, не привязанный к HTTP. Компоненты возвращают
// *Kind вместо типизированных ошибок — HTTP Surface переводит его в статус.
type Kind struct {
	Code    string
	Message string
}

func (k *Kind) Error() string {
	return k.Code + ": " + k.Message
}

// New создаёт доменную ошибку с заданным кодом.
func New(code, message string) *Kind {
	return &Kind{Code: code, Message: message}
}

// statusForCode — таблица код → HTTP статус.
var statusForCode = map[string]int{
	CodeInvalidInput:       http.StatusUnprocessableEntity,
	CodeInvalidFacet:       http.StatusUnprocessableEntity,
	CodeInvalidTime:        http.StatusUnprocessableEntity,
	CodeInvalidBBox:        http.StatusUnprocessableEntity,
	CodeUnauthenticated:    http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeImmutable:          http.StatusUnprocessableEntity,
	CodeBackendUnavailable: http.StatusServiceUnavailable,
	CodeBrokerUnavailable:  http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
}

// WriteError сериализует err в стандартном формате и выставляет статус.
// Если err не *Kind, возвращается 500 INTERNAL, а исходная ошибка не
// раскрывается клиенту.
func WriteError(w http.ResponseWriter, err error) {
	var k *Kind
	if !errors.As(err, &k) {
		k = &Kind{Code: CodeInternal, Message: "внутренняя ошибка сервера"}
	}

	status, ok := statusForCode[k.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{Code: k.Code, Message: k.Message},
	})
}

// Write — удобный вариант WriteError, строящий Kind на месте.
func Write(w http.ResponseWriter, code, message string) {
	WriteError(w, New(code, message))
}

// StatusFor возвращает HTTP-статус для данного кода ошибки.
func StatusFor(code string) int {
	if s, ok := statusForCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
