package builtin

import (
	"bufio"
	"bytes"
	"time"

	"github.com/log2timeline/plaso-sub000/internal/parsers"
	"github.com/log2timeline/plaso-sub000/pkg/errors"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
)

// SyslogParser is a text-line parser for classic RFC 3164-ish syslog
// lines ("Jan  2 15:04:05 host tag: message"), spec.md §8 S6's
// "syslog parser" reference.
type SyslogParser struct{}

func (SyslogParser) Name() string                 { return "syslog" }
func (SyslogParser) Shape() parsers.Shape         { return parsers.ShapeTextLine }
func (SyslogParser) SupportedDataTypes() []string { return []string{"syslog:line"} }

const syslogTimeLayout = "Jan _2 15:04:05"

func (SyslogParser) Parse(m parsers.Mediator) error {
	raw, err := m.Stream().ReadAt(0, 1<<20)
	if err != nil {
		return errors.IOError("syslog", "read", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	matched := false
	year := time.Now().Year()
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < len(syslogTimeLayout) {
			continue
		}
		ts, perr := time.Parse(syslogTimeLayout, line[:len(syslogTimeLayout)])
		if perr != nil {
			continue
		}
		matched = true
		ts = time.Date(year, ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, time.UTC)

		rest := line[len(syslogTimeLayout):]
		attrs := map[string]interface{}{
			"message": rest,
		}
		dataRef := m.ProduceEventData("syslog:line", "syslog", attrs)
		m.ProduceEvent(eventmodel.FromUnixMicroseconds(ts.UnixMicro()), "Write Time", dataRef)
	}
	if err := scanner.Err(); err != nil {
		return errors.ParseError("syslog", "scan", err)
	}
	if !matched {
		return errors.UnableToParse("syslog", "syslog")
	}
	return nil
}
