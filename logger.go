package lstorage

import (
	"log"
	"os"
)

type Logger interface {
	Printf(format string, v ...interface{})
}

func DefaultLogger() Logger {
	return log.New(os.Stderr, "lstorage: ", log.LstdFlags)
}

type nopLogger struct{}

func (l *nopLogger) Printf(_ string, _ ...interface{}) {
	return
}
