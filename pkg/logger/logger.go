// Package logger holds the process-wide structured logger.
package logger

import (
	"go.uber.org/zap"
)

// Log is safe to use before Init; it starts as a no-op logger so library
// code and tests never nil-check it.
var Log = zap.NewNop()

// Init replaces the global logger. Debug mode uses the development encoder
// with human-readable output; production emits JSON.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	Log = l
	return nil
}

func Sync() {
	_ = Log.Sync()
}
