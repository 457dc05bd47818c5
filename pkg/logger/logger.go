// Package logger provides small prefixed stdlib loggers for loops that want
// plain line output rather than structured records.
package logger

import (
	"log"
	"os"
)

// New returns a stdlib logger tagged with the component name.
func New(component string) *log.Logger {
	return log.New(os.Stdout, "["+component+"] ", log.LstdFlags)
}
