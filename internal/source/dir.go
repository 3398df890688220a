package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/vburojevic/runwatch/internal/domain"
)

// Dir reads exported telemetry from NDJSON files laid out as <root>/<type>/<resource>.ndjson
type Dir struct {
	root   string
	logger *zap.Logger
}

// NewDir creates a directory-backed source
func NewDir(root string, logger *zap.Logger) *Dir {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dir{root: root, logger: logger}
}

// runTimePaths are the start-time fields of the supported run documents
var runTimePaths = []string{"StartedOn", "startDate", "Timestamp", "timestamp"}

// FetchLogs returns the resource's log lines in (since, until], in file order
func (d *Dir) FetchLogs(ctx context.Context, res domain.Resource, since, until time.Time) ([]domain.LogLine, error) {
	var lines []domain.LogLine
	err := d.scan(ctx, res, func(doc gjson.Result, lineNum int) {
		ts, ok := ParseTime(doc.Get("timestamp"))
		if !ok {
			d.logger.Debug("skipping log line without timestamp",
				zap.String("resource", res.Key()), zap.Int("line", lineNum))
			return
		}
		if !inWindow(ts, since, until) {
			return
		}
		lines = append(lines, domain.LogLine{
			Timestamp: ts,
			StreamID:  first(doc, "stream_id", "logStreamName", "stream").String(),
			RequestID: first(doc, "request_id", "requestId").String(),
			Message:   first(doc, "message", "eventMessage").String(),
		})
	})
	return lines, err
}

// FetchRuns returns the resource's raw run documents started in (since, until].
// Documents without a recognizable start time are passed through.
func (d *Dir) FetchRuns(ctx context.Context, res domain.Resource, since, until time.Time) ([][]byte, error) {
	var docs [][]byte
	err := d.scan(ctx, res, func(doc gjson.Result, _ int) {
		if ts, ok := ParseTime(first(doc, runTimePaths...)); ok && !inWindow(ts, since, until) {
			return
		}
		docs = append(docs, []byte(doc.Raw))
	})
	return docs, err
}

// Path returns the file holding a resource's telemetry
func (d *Dir) Path(res domain.Resource) string {
	return filepath.Join(d.root, string(res.Type), res.Name+".ndjson")
}

func (d *Dir) scan(ctx context.Context, res domain.Resource, fn func(doc gjson.Result, lineNum int)) error {
	path := d.Path(res)
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		if !gjson.ValidBytes(raw) {
			d.logger.Debug("skipping unparseable line", zap.String("path", path), zap.Int("line", lineNum))
			continue
		}
		// scanner reuses its buffer; gjson.Parse on a string copy keeps Raw valid
		fn(gjson.Parse(string(raw)), lineNum)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// ParseTime reads a timestamp that is either an RFC3339-like string or a unix
// epoch number (seconds or milliseconds)
func ParseTime(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.String:
		layouts := []string{
			time.RFC3339Nano,
			"2006-01-02T15:04:05.000-0700",
			"2006-01-02 15:04:05.999999-0700",
			"2006-01-02 15:04:05",
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v.Str); err == nil {
				return t.UTC(), true
			}
		}
	case gjson.Number:
		n := v.Float()
		if n <= 0 {
			return time.Time{}, false
		}
		// Values past 1e11 cannot be seconds of this era.
		if n > 1e11 {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		sec := int64(n)
		return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC(), true
	}
	return time.Time{}, false
}

func first(doc gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func inWindow(ts, since, until time.Time) bool {
	if !ts.After(since) {
		return false
	}
	return until.IsZero() || !ts.After(until)
}
