// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ava-labs/erstate/config"
)

type logWrapper struct {
	logger       logging.Logger
	displayLevel zap.AtomicLevel
	logLevel     zap.AtomicLevel
}

// logFactory writes to stderr and, when a directory is configured, to
// rotating files in it.
type logFactory struct {
	config logging.Config
	lock   sync.RWMutex

	// For each logger created by this factory:
	// Logger name --> the logger.
	loggers map[string]logWrapper
}

func newLogFactory(c *config.Config) *logFactory {
	level := c.GetLogLevel()
	return &logFactory{
		config: logging.Config{
			RotatingWriterConfig: logging.RotatingWriterConfig{
				MaxSize:   8, // megabytes
				MaxFiles:  5,
				MaxAge:    7, // days
				Directory: c.LogDir,
			},
			LogLevel:     level,
			DisplayLevel: level,
			LogFormat:    logging.JSON,
		},
		loggers: make(map[string]logWrapper),
	}
}

// Assumes [f.lock] is held
func (f *logFactory) makeLogger(config logging.Config) (logging.Logger, error) {
	if _, ok := f.loggers[config.LoggerName]; ok {
		return nil, fmt.Errorf("logger with name %q already exists", config.LoggerName)
	}
	consoleEnc := logging.Colors.ConsoleEncoder()
	consoleCore := logging.NewWrappedCore(config.DisplayLevel, os.Stderr, consoleEnc)
	cores := []logging.WrappedCore{consoleCore}

	w := logWrapper{displayLevel: consoleCore.AtomicLevel}
	if config.Directory != "" {
		rw := &lumberjack.Logger{
			Filename:   filepath.Join(config.Directory, config.LoggerName+".log"),
			MaxSize:    config.MaxSize,  // megabytes
			MaxAge:     config.MaxAge,   // days
			MaxBackups: config.MaxFiles, // files
			Compress:   config.Compress,
		}
		fileCore := logging.NewWrappedCore(config.LogLevel, rw, config.LogFormat.FileEncoder())
		cores = append(cores, fileCore)
		w.logLevel = fileCore.AtomicLevel
	}
	prefix := config.LogFormat.WrapPrefix(config.MsgPrefix)

	w.logger = logging.NewLogger(prefix, cores...)
	f.loggers[config.LoggerName] = w
	return w.logger, nil
}

func (f *logFactory) Make(name string) (logging.Logger, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	config := f.config
	config.LoggerName = name
	return f.makeLogger(config)
}

func (f *logFactory) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, lw := range f.loggers {
		lw.logger.Stop()
	}
	f.loggers = nil
}
