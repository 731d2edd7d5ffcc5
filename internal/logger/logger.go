// Package logger provides the leveled logging collaborator used across
// the tracker transport, peer session and torrent driver. It never
// decides policy on its own (no print-based ad-hoc logging, no silent
// swallowing of errors) — callers choose what to log and at what level.
package logger

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var currentLevel int32 = int32(LevelInfo)

// SetLevel changes the global minimum level logged by every Logger
// created with New.
func SetLevel(l Level) { atomic.StoreInt32(&currentLevel, int32(l)) }

// Logger is the collaborator components take instead of calling a global
// logger directly.
type Logger interface {
	Debug(args ...interface{})
	Debugln(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warningln(args ...interface{})
	Error(args ...interface{})
	Errorln(args ...interface{})
}

type stdLogger struct {
	prefix string
	l      *log.Logger
}

// New returns a Logger that prefixes every line with name, the way
// "peer <- 1.2.3.4:6881" or "tracker udp://tracker.example:80" identify
// the component emitting a line.
func New(name string) Logger {
	return &stdLogger{
		prefix: name,
		l:      log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (s *stdLogger) emit(level Level, tag string, args ...interface{}) {
	if int32(level) < atomic.LoadInt32(&currentLevel) {
		return
	}
	s.l.Printf("%s [%s] %s", tag, s.prefix, fmt.Sprint(args...))
}

func (s *stdLogger) emitf(level Level, tag, format string, args ...interface{}) {
	if int32(level) < atomic.LoadInt32(&currentLevel) {
		return
	}
	s.l.Printf("%s [%s] %s", tag, s.prefix, fmt.Sprintf(format, args...))
}

func (s *stdLogger) Debug(args ...interface{})               { s.emit(LevelDebug, "DEBUG", args...) }
func (s *stdLogger) Debugln(args ...interface{})              { s.emit(LevelDebug, "DEBUG", args...) }
func (s *stdLogger) Debugf(format string, args ...interface{}) {
	s.emitf(LevelDebug, "DEBUG", format, args...)
}
func (s *stdLogger) Info(args ...interface{}) { s.emit(LevelInfo, "INFO", args...) }
func (s *stdLogger) Infof(format string, args ...interface{}) {
	s.emitf(LevelInfo, "INFO", format, args...)
}
func (s *stdLogger) Warningln(args ...interface{}) { s.emit(LevelWarning, "WARN", args...) }
func (s *stdLogger) Error(args ...interface{})     { s.emit(LevelError, "ERROR", args...) }
func (s *stdLogger) Errorln(args ...interface{})   { s.emit(LevelError, "ERROR", args...) }
