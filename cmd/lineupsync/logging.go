package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// configureLogging uses human-readable output on a terminal and JSON lines
// everywhere else
func configureLogging(out io.Writer, verbose bool) {
	logrus.SetOutput(out)
	logrus.SetLevel(logrus.InfoLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if isTerminal(out) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
