package media_sdp

import (
	"errors"
	"fmt"
	"strings"
)

// SDPErrorCode определяет коды ошибок для операций согласования медиа
type SDPErrorCode int

const (
	// ErrorCodeInvalidInput пустой SDP или некорректная конфигурация
	ErrorCodeInvalidInput SDPErrorCode = iota + 2000
	// ErrorCodeNegotiationRejected медиа слой отклонил SDP
	ErrorCodeNegotiationRejected
	// ErrorCodePortSelection не удалось выбрать порт
	ErrorCodePortSelection
	// ErrorCodeActivation не удалось активировать транспорт
	ErrorCodeActivation
	// ErrorCodeAllocation не удалось выделить память под тело
	ErrorCodeAllocation
)

var errorCodeNames = map[SDPErrorCode]string{
	ErrorCodeInvalidInput:        "invalid_input",
	ErrorCodeNegotiationRejected: "rejected",
	ErrorCodePortSelection:       "port_selection",
	ErrorCodeActivation:          "activation",
	ErrorCodeAllocation:          "allocation",
}

func (c SDPErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "unknown"
}

// SDPError ошибка установки медиа для одной сессии.
// Code определяет, на каком шаге EstablishMedia произошел отказ.
type SDPError struct {
	Code      SDPErrorCode
	Message   string
	SessionID string
	Wrapped   error
}

// NewSDPErrorWithSession создает ошибку без причины. sessionID может быть пустым.
func NewSDPErrorWithSession(code SDPErrorCode, sessionID string, format string, args ...interface{}) *SDPError {
	return WrapSDPError(code, sessionID, nil, format, args...)
}

// WrapSDPError создает ошибку с причиной err
func WrapSDPError(code SDPErrorCode, sessionID string, err error, format string, args ...interface{}) *SDPError {
	return &SDPError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		SessionID: sessionID,
		Wrapped:   err,
	}
}

func (e *SDPError) Error() string {
	var b strings.Builder
	b.WriteString("media_sdp: ")
	if e.SessionID != "" {
		b.WriteString("сессия ")
		b.WriteString(e.SessionID)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s [%s/%d]", e.Message, e.Code, int(e.Code))
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

func (e *SDPError) Unwrap() error {
	return e.Wrapped
}

// ErrorCodeOf возвращает код SDPError из цепочки err или 0
func ErrorCodeOf(err error) SDPErrorCode {
	var sdpErr *SDPError
	if errors.As(err, &sdpErr) {
		return sdpErr.Code
	}
	return 0
}

// IsSDPError сообщает, содержит ли цепочка err SDPError с кодом code
func IsSDPError(err error, code SDPErrorCode) bool {
	return err != nil && ErrorCodeOf(err) == code
}
