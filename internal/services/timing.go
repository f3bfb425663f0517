package services

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// TrackTime logs how long op has run since start. Meant to be deferred.
func TrackTime(op string, start time.Time) {
	log.WithFields(log.Fields{
		"op":         op,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("timing")
}
