package output

import (
	"io"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/monitor"
)

// Emitter writes command results in the selected format
type Emitter interface {
	Extract(report monitor.ExtractReport) error
	Digest(report monitor.DigestReport) error
	Resources(resources []domain.Resource, links func(domain.Resource) string) error
	Error(code, msg string) error
}

// NewEmitter returns a text emitter for "text" and an NDJSON emitter otherwise
func NewEmitter(format string, w io.Writer) Emitter {
	if format == "text" {
		return textEmitter{w: NewTextWriter(w)}
	}
	return ndjsonEmitter{w: NewNDJSONWriter(w)}
}

type ndjsonEmitter struct {
	w *NDJSONWriter
}

func (e ndjsonEmitter) Extract(r monitor.ExtractReport) error { return e.w.WriteExtract(r) }
func (e ndjsonEmitter) Digest(r monitor.DigestReport) error   { return e.w.WriteDigest(r) }
func (e ndjsonEmitter) Error(code, msg string) error          { return e.w.WriteError(code, msg) }
func (e ndjsonEmitter) Resources(rs []domain.Resource, links func(domain.Resource) string) error {
	return e.w.WriteResources(rs, links)
}

type textEmitter struct {
	w *TextWriter
}

func (e textEmitter) Extract(r monitor.ExtractReport) error { return e.w.WriteExtract(r) }
func (e textEmitter) Digest(r monitor.DigestReport) error   { return e.w.WriteDigest(r) }
func (e textEmitter) Error(code, msg string) error          { return e.w.WriteError(code, msg) }
func (e textEmitter) Resources(rs []domain.Resource, links func(domain.Resource) string) error {
	return e.w.WriteResources(rs, links)
}
