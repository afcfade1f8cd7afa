package training

import "fmt"

// ConfigError reports a missing or invalid training configuration key.
// It is returned before any input is read or output written.
type ConfigError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "training: config " + e.Key + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// DataError reports input that cannot be trained on: no rows, a configured
// column absent from the rows, or a value that does not parse.
type DataError struct {
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return "training: data: " + e.Reason + ": " + e.Err.Error()
	}
	return "training: data: " + e.Reason
}

func (e *DataError) Unwrap() error { return e.Err }

func dataErr(err error, format string, args ...any) *DataError {
	return &DataError{Reason: fmt.Sprintf(format, args...), Err: err}
}
