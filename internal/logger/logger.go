// Package logger builds the process-wide zap logger.
package logger

import "go.uber.org/zap"

// New returns a JSON production logger when env is "production" and a
// console development logger otherwise.
func New(env string) *zap.Logger {
	if env == "production" {
		log, _ := zap.NewProduction()
		return log
	}
	log, _ := zap.NewDevelopment()
	return log
}
