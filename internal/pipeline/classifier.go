// Package pipeline drives the acquisition workflow: it classifies step
// output, mediates authentication challenges, runs step subprocesses and
// sequences them into a pipeline.
package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

// EventKind identifies a classified step-output event.
type EventKind int

const (
	EventNone EventKind = iota

	// Auth step events, in priority order.
	EventAuthCompleted
	EventOtpAccepted
	EventOtpChallenge
	EventPushChallenge
	EventSecureChannel
	EventOtpRejected
	EventInvalidEmail
	EventIncorrectPassword
	EventPushDenied
	EventUnknownChallenge
	EventUnexpectedError
	EventCurrentURL

	// Fetch step events.
	EventFetchProgress
	EventFetchComplete

	// Post-processing step events.
	EventSyncComplete
	EventDownloadSummary
	EventReportCleanup
	EventReportComplete
)

// Event is one classified output line. Detail carries a captured string
// (e.g. a URL); N and M carry captured counters where the marker has them.
type Event struct {
	Kind   EventKind
	Detail string
	N      int
	M      int
}

// Classifier turns a raw subprocess output line into a domain event.
// The marker phrases it matches are a versioned contract with the external
// step scripts; rules are checked in priority order and the first match wins.
type Classifier interface {
	Classify(line string) (Event, bool)
}

type rule struct {
	substrs []string // any-of substring match
	re      *regexp.Regexp
	kind    EventKind
}

type markerClassifier struct {
	rules []rule
}

func (c *markerClassifier) Classify(line string) (Event, bool) {
	for _, r := range c.rules {
		if r.re != nil {
			m := r.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			ev := Event{Kind: r.kind}
			for i, g := range m[1:] {
				if n, err := strconv.Atoi(g); err == nil {
					if i == 0 {
						ev.N = n
					} else {
						ev.M = n
					}
				} else if ev.Detail == "" {
					ev.Detail = g
				}
			}
			return ev, true
		}
		for _, s := range r.substrs {
			if strings.Contains(line, s) {
				return Event{Kind: r.kind}, true
			}
		}
	}
	return Event{}, false
}

var currentURLRe = regexp.MustCompile(`Current URL: (https?://\S+)`)

// NewAuthClassifier matches the authentication step's marker phrases.
// Success markers are checked before failure markers so that a line carrying
// both resolves in the job's favor, mirroring the step contract.
func NewAuthClassifier() Classifier {
	return &markerClassifier{rules: []rule{
		{re: currentURLRe, kind: EventCurrentURL},
		{substrs: []string{"Authentication completed successfully", "Successfully reached the activity page"}, kind: EventAuthCompleted},
		{substrs: []string{"OTP verification successful", "OTP authentication completed successfully"}, kind: EventOtpAccepted},
		{substrs: []string{"OTP challenge detected"}, kind: EventOtpChallenge},
		{substrs: []string{"Push notification sent"}, kind: EventPushChallenge},
		{substrs: []string{"Secure connection established"}, kind: EventSecureChannel},
		{substrs: []string{"OTP verification failed", "INVALID_OTP"}, kind: EventOtpRejected},
		{substrs: []string{"INVALID_EMAIL"}, kind: EventInvalidEmail},
		{substrs: []string{"INCORRECT_PASSWORD"}, kind: EventIncorrectPassword},
		{substrs: []string{"Push notification was denied"}, kind: EventPushDenied},
		{substrs: []string{"UNKNOWN_CHALLENGE_PAGE", "Unknown challenge page detected"}, kind: EventUnknownChallenge},
		{substrs: []string{"UNEXPECTED_ERROR", "An unexpected error occurred during authentication"}, kind: EventUnexpectedError},
	}}
}

// NewFetchClassifier matches the activity-fetch step's progress markers.
func NewFetchClassifier() Classifier {
	return &markerClassifier{rules: []rule{
		{re: regexp.MustCompile(`Total activities processed: (\d+)`), kind: EventFetchComplete},
		{re: regexp.MustCompile(`Processing (\d+) to (\d+)`), kind: EventFetchProgress},
	}}
}

// NewSyncClassifier matches the transcript-sync step's completion marker.
func NewSyncClassifier() Classifier {
	return &markerClassifier{rules: []rule{
		{re: regexp.MustCompile(`Final mapping saved \(entries: (\d+)\)`), kind: EventSyncComplete},
	}}
}

// NewDownloadClassifier matches the media-download step's summary marker.
func NewDownloadClassifier() Classifier {
	return &markerClassifier{rules: []rule{
		{re: regexp.MustCompile(`Download summary: (\d+) successful, (\d+) failed`), kind: EventDownloadSummary},
	}}
}

// NewReportClassifier matches the report-assembly step's markers.
func NewReportClassifier() Classifier {
	return &markerClassifier{rules: []rule{
		{substrs: []string{"Temporary media files cleaned up"}, kind: EventReportCleanup},
		{substrs: []string{"REPORT GENERATION COMPLETE"}, kind: EventReportComplete},
	}}
}
