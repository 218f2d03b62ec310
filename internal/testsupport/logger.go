package testsupport

import (
	"io"

	"github.com/sirupsen/logrus"
)

// QuietLogger returns a logger that discards everything.
func QuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
