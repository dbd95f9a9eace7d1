// Package logging bootstraps the process-wide logger. The source tool
// (devops/lib/log.py) calls logging.basicConfig with a format and level
// read from environment settings, then layers coloredlogs over it
// when available. This package does the logrus equivalent: a text
// formatter with timestamps, plus a level and format read from
// LOG_LEVEL/LOG_FORMAT environment variables.
package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

const defaultTimestampFormat = "2006-01-02 15:04:05"

// Init configures the global logrus logger from LOG_LEVEL (default
// "info") and LOG_FORMAT ("text" or "json", default "text").
func Init() {
	level, err := log.ParseLevel(envOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if envOrDefault("LOG_FORMAT", "text") == "json" {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: defaultTimestampFormat})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: defaultTimestampFormat})
	}

	log.SetOutput(os.Stderr)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// BigLabel logs a large boxed banner, matching devops/lib/utils.py's
// big_label helper used to separate release phases in the log stream.
func BigLabel(text string) {
	fill := strings.Repeat("-", len(text))
	pad := strings.Repeat(" ", len(text))
	log.Info("")
	log.Infof("/---%s---\\", fill)
	log.Infof("|   %s   |", pad)
	log.Infof("|   %s   |", text)
	log.Infof("|   %s   |", pad)
	log.Infof("\\---%s---/", fill)
	log.Info("")
}

// Label logs a small boxed banner, matching devops/lib/utils.py's label
// helper used to announce individual component releases.
func Label(text string) {
	fill := strings.Repeat("-", len(text))
	log.Infof("/-%s-\\", fill)
	log.Infof("| %s |", text)
	log.Infof("\\-%s-/", fill)
}
