// Package logflags turns command line logging flags into configured
// loggers for the other packages of this module.
package logflags

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	debug bool
	scan  bool
	term  bool
)

var logOut io.WriteCloser

// Logger is the logging interface handed to the engine packages.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

func makeLogger(flag bool, fields logrus.Fields) Logger {
	logger := logrus.New()
	logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	logger.Level = logrus.DebugLevel
	if !flag {
		logger.Level = logrus.ErrorLevel
		logger.Out = ioutil.Discard
	} else if logOut != nil {
		logger.Out = logOut
	} else {
		logger.Out = os.Stderr
	}
	return logger.WithFields(fields)
}

// Debug returns true if the debug session layer should log.
func Debug() bool {
	return debug
}

// DebugLogger returns a logger for the debug session layer.
func DebugLogger() Logger {
	return makeLogger(debug, logrus.Fields{"layer": "debug"})
}

// Scan returns true if the memory map scan should log skipped regions.
func Scan() bool {
	return scan
}

// ScanLogger returns a logger for the memory map scan.
func ScanLogger() Logger {
	return makeLogger(scan, logrus.Fields{"layer": "debug", "kind": "scan"})
}

// Terminal returns true if the terminal front-end should log.
func Terminal() bool {
	return term
}

// TerminalLogger returns a logger for the terminal front-end.
func TerminalLogger() Logger {
	return makeLogger(term, logrus.Fields{"layer": "terminal"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the logging flags. logstr is a comma separated list of
// component names; logDest is a file path or file descriptor number.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "sdb-logs")
		} else {
			f, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log output file: %v", err)
			}
			logOut = f
		}
	}
	if !logFlag {
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "debug"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "debug":
			debug = true
		case "scan":
			scan = true
		case "terminal":
			term = true
		default:
			return fmt.Errorf("invalid log component %q", logcmd)
		}
	}
	return nil
}

// Close closes the logger output file, if one was set up.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}
