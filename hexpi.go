package hexpi

import (
	"github.com/go-logr/logr"
)

// Logger to use in this package; default is a no-op logger.
var logger = logr.Discard()

// Change the logger instance used by this package.
func SetLogger(l logr.Logger) {
	logger = l
}
