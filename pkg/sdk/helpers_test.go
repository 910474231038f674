package sdk_test

import (
	"io"
	"log"
)

func ptr[T any](v T) *T {
	return &v
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
