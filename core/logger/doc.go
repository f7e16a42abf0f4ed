// Package logger is a standardized event logging framework for the shell.
//
// Each event is written as one JSON object per line so the log can be
// appended to by several sessions and summarized later with Report.
package logger
