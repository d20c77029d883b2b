package port

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport не-2xx ответ или сетевая ошибка
	ErrTransport = errors.New("transport failure")

	// ErrParse тело ответа не разобрано
	ErrParse = errors.New("parse failure")

	// ErrStaleSelection ответ относится к уже неактуальному выбору
	ErrStaleSelection = errors.New("stale selection")
)

// FetchKind класс ошибки загрузки
type FetchKind int

const (
	FetchTransport FetchKind = iota
	FetchParse
)

// FetchError ошибка загрузки источника.
// Message показывается пользователю (для HTTP это statusText).
type FetchError struct {
	Kind    FetchKind
	Message string
	Status  int
	Err     error
}

// NewTransportError создает ошибку транспорта
func NewTransportError(message string, status int, err error) *FetchError {
	return &FetchError{Kind: FetchTransport, Message: message, Status: status, Err: err}
}

// NewParseError создает ошибку разбора
func NewParseError(message string, err error) *FetchError {
	return &FetchError{Kind: FetchParse, Message: message, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать с ErrTransport и ErrParse через errors.Is
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == FetchTransport
	case ErrParse:
		return e.Kind == FetchParse
	default:
		return false
	}
}

// DisplayMessage текст ошибки для снимка источника
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return err.Error()
}
