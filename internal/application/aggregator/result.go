package aggregator

// Result исход одной загрузки источника
type Result struct {
	Payload any
	Err     string
}

// Ok успешный результат
func Ok(payload any) Result {
	return Result{Payload: payload}
}

// Err результат с ошибкой; пустое сообщение заменяется в Snapshot.Fail
func Err(message string) Result {
	if message == "" {
		message = "unknown error"
	}
	return Result{Err: message}
}

// IsErr true для результата с ошибкой
func (r Result) IsErr() bool {
	return r.Err != ""
}
