// Package logger provides the tagged, leveled logging surface used across
// wfm-pricer, backed by logrus instead of raw stdout writes.
package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var base = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

func entry(tag string) *logrus.Entry {
	return base.WithField("tag", tag)
}

// Info logs a routine message under tag.
func Info(tag, msg string) {
	entry(tag).Info(msg)
}

// Success logs a positive-outcome message under tag.
func Success(tag, msg string) {
	entry(tag).Info("✓ " + msg)
}

// Warn logs a recoverable problem under tag.
func Warn(tag, msg string) {
	entry(tag).Warn(msg)
}

// Error logs a failure under tag.
func Error(tag, msg string) {
	entry(tag).Error(msg)
}

// Banner prints the startup banner for the given version.
func Banner(version string) {
	fmt.Println("==============================================")
	fmt.Printf("  wfm-pricer %s\n", version)
	fmt.Println("==============================================")
}

// Section prints a visual section break for a long-running phase.
func Section(title string) {
	fmt.Printf("\n--- %s ---\n", title)
}

// Stats logs a single named integer statistic.
func Stats(key string, value int) {
	base.WithField("tag", "Stats").Infof("%s = %d", key, value)
}

// Server logs the address the metrics endpoint listens on.
func Server(addr string) {
	entry("Server").Infof("listening on %s", addr)
}
