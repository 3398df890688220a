package correlate

import (
	"regexp"
	"strings"

	"github.com/vburojevic/runwatch/internal/domain"
)

// lineKind is the category of a log line
type lineKind int

const (
	kindOther lineKind = iota
	kindStart
	kindEnd
	kindReport
	kindError
)

func (k lineKind) String() string {
	switch k {
	case kindStart:
		return "start"
	case kindEnd:
		return "end"
	case kindReport:
		return "report"
	case kindError:
		return "error"
	default:
		return "other"
	}
}

const (
	startMarker  = "START RequestId:"
	endMarker    = "END RequestId:"
	reportMarker = "REPORT RequestId:"
)

// errorMarkers identify lines that describe a failure of the current invocation
var errorMarkers = []string{
	"[ERROR]",
	"ERROR",
	"Task timed out",
	"Runtime.ExitError",
	"Runtime.OutOfMemory",
}

var (
	requestIDRegex = regexp.MustCompile(`RequestId:\s*([^\s]+)`)
	uuidRegex      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	reportStatus   = regexp.MustCompile(`Status:\s*(timeout|error)`)
)

// classify returns the category of a line by its marker substrings
func classify(msg string) lineKind {
	switch {
	case strings.Contains(msg, reportMarker):
		return kindReport
	case strings.Contains(msg, startMarker):
		return kindStart
	case strings.Contains(msg, endMarker):
		return kindEnd
	}
	for _, m := range errorMarkers {
		if strings.Contains(msg, m) {
			return kindError
		}
	}
	return kindOther
}

// requestID resolves the request id of a line. An explicit id on the line wins;
// control lines carry it after "RequestId:", error lines as a UUID token.
func requestID(line domain.LogLine, kind lineKind) string {
	if line.RequestID != "" {
		return line.RequestID
	}
	switch kind {
	case kindStart, kindEnd, kindReport:
		if m := requestIDRegex.FindStringSubmatch(line.Message); m != nil {
			return m[1]
		}
	case kindError:
		return uuidRegex.FindString(line.Message)
	}
	return ""
}

// reportFailed reports whether the REPORT line itself states a failed invocation
func reportFailed(msg string) bool {
	return reportStatus.MatchString(msg)
}
