// Package ops sets up process-wide structured logging: one log file
// per run, structured fields for project/sample/event context rather
// than free-form message interpolation.
package ops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// InitLogging points the standard logrus logger at a new
// yggdrasil_<timestamp>.log file inside dir, in addition to stderr,
// and returns a closer for the opened file. Failure to open the log
// directory is one of the two conditions (the other being a
// config-parse failure) allowed to abort the process outright.
func InitLogging(dir string, devMode bool) (io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory %q: %w", dir, err)
	}

	name := fmt.Sprintf("yggdrasil_%s.log", time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %q: %w", path, err)
	}

	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if devMode {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	return f, nil
}

// ForProject returns a logger entry pre-populated with project_id,
// the field every log line touching a YggdrasilDocument should carry.
func ForProject(projectID string) *logrus.Entry {
	return logrus.WithField("project_id", projectID)
}

// ForSample returns a logger entry pre-populated with project_id and
// sample_id.
func ForSample(projectID, sampleID string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"project_id": projectID,
		"sample_id":  sampleID,
	})
}
