package main

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// SetupLogger creates and configures the run logger. Output goes to both the
// log file and stdout so operators see progress while the file keeps the
// permanent record.
func SetupLogger(cfg LoggingConfig) (*logrus.Logger, *os.File, error) {
	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(file, os.Stdout))

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger, file, nil
}
