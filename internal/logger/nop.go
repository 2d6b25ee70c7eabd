// Package logger provides the loggers components fall back to: a discarding
// logger for production defaults and one writing to the test log.
package logger

import "github.com/wwsupercheese/tictactoe/types"

// NopLogger drops every entry. Fatal does not exit.
type NopLogger struct{}

var _ types.Logger = NopLogger{}

// NewNop returns a NopLogger.
func NewNop() *NopLogger { return &NopLogger{} }

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (NopLogger) Fatal(string, ...any) {}
