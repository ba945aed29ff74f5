package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-junit-reporter/models"
	"github.com/hashicorp/go-version"
)

// MaxLineSize is the longest event line the decoder accepts.
const MaxLineSize = 16 * 1024 * 1024

// SupportedProtocol is the version constraint of the event protocol this decoder understands.
const SupportedProtocol = ">= 1.0, < 2.0"

// Type ...
type Type string

// Event types ...
const (
	TypeBegin     Type = "begin"
	TypeTestBegin Type = "testBegin"
	TypeTestEnd   Type = "testEnd"
	TypeEnd       Type = "end"
)

// Handler receives the decoded lifecycle events in stream order.
type Handler interface {
	OnRunBegin(config models.RunConfig, root models.Group)
	OnTestBegin(test models.TestIdentity)
	OnTestEnd(test models.TestIdentity, outcome models.TestOutcome)
	OnRunEnd(result models.RunResult)
}

// Event is one line of the stream. Result holds a test outcome for testEnd and the run result for end.
// Payloads are decoded field by field, a field of the wrong type is dropped instead of the event.
type Event struct {
	Type      Type            `json:"type"`
	Config    json.RawMessage `json:"config,omitempty"`
	RootGroup json.RawMessage `json:"rootGroup,omitempty"`
	Test      json.RawMessage `json:"test,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Stats ...
type Stats struct {
	Events   int
	Skipped  int
	Repaired int
	RunEnded bool
}

// Decoder ...
type Decoder struct {
	logger      log.Logger
	handler     Handler
	constraints version.Constraints
}

// NewDecoder ...
func NewDecoder(logger log.Logger, handler Handler) *Decoder {
	constraints, err := version.NewConstraint(SupportedProtocol)
	if err != nil {
		panic(err)
	}

	return &Decoder{
		logger:      logger,
		handler:     handler,
		constraints: constraints,
	}
}

// Decode reads JSON lines from r until EOF and dispatches them to the handler.
// Lines which are not events are skipped.
func (d *Decoder) Decode(r io.Reader) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		eventType, invalidFields, err := d.dispatch(line)
		if err != nil {
			d.logger.Debugf("Skipping line %d: %s", lineNumber, err)
			stats.Skipped++
			continue
		}
		if len(invalidFields) > 0 {
			d.logger.Warnf("Event on line %d (%s) has invalid fields, using defaults for: %s", lineNumber, eventType, strings.Join(invalidFields, ", "))
			stats.Repaired++
		}

		stats.Events++
		if eventType == TypeEnd {
			stats.RunEnded = true
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read event stream at line %d: %w", lineNumber+1, err)
	}

	return stats, nil
}

func (d *Decoder) dispatch(line []byte) (Type, []string, error) {
	if line[0] != '{' {
		return "", nil, fmt.Errorf("not an event: %.80q", line)
	}

	var event Event
	if err := json.Unmarshal(line, &event); err != nil {
		return "", nil, fmt.Errorf("invalid event: %w", err)
	}

	var invalid fieldErrors
	switch event.Type {
	case TypeBegin:
		config := decodeRunConfig(event.Config, invalid.in("config"))
		root := decodeGroup(event.RootGroup, invalid.in("rootGroup"))
		d.checkProtocolVersion(config.ProtocolVersion)
		d.handler.OnRunBegin(config, root)
	case TypeTestBegin:
		d.handler.OnTestBegin(decodeTestIdentity(event.Test, invalid.in("test")))
	case TypeTestEnd:
		test := decodeTestIdentity(event.Test, invalid.in("test"))
		outcome := decodeTestOutcome(event.Result, invalid.in("result"))
		d.handler.OnTestEnd(test, outcome)
	case TypeEnd:
		d.handler.OnRunEnd(decodeRunResult(event.Result, invalid.in("result")))
	default:
		return "", nil, fmt.Errorf("unknown event type: %q", event.Type)
	}

	return event.Type, invalid.fields, nil
}

// checkProtocolVersion warns about unsupported protocol versions. A missing version is accepted.
func (d *Decoder) checkProtocolVersion(protocolVersion string) bool {
	if protocolVersion == "" {
		return true
	}

	v, err := version.NewVersion(protocolVersion)
	if err != nil {
		d.logger.Warnf("Invalid event protocol version (%s): %s", protocolVersion, err)
		return false
	}
	if !d.constraints.Check(v) {
		d.logger.Warnf("Event protocol version %s is not supported (%s), the report might be incomplete", v, SupportedProtocol)
		return false
	}
	return true
}

// fieldErrors collects the dotted paths of payload fields that could not be decoded.
type fieldErrors struct {
	fields []string
}

func (e *fieldErrors) in(prefix string) func(field string) {
	return func(field string) {
		if field == "" {
			e.fields = append(e.fields, prefix)
			return
		}
		e.fields = append(e.fields, prefix+"."+field)
	}
}

// decodeObject decodes the listed fields of a JSON object one by one. Missing and null fields are
// left untouched, a field of the wrong type is reported and left zero. If raw is not an object
// the whole value is reported.
func decodeObject(raw json.RawMessage, fields map[string]interface{}, report func(field string)) map[string]json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil {
		report("")
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, ok := object[name]
		if !ok || string(value) == "null" {
			continue
		}
		if err := json.Unmarshal(value, fields[name]); err != nil {
			report(name)
		}
	}
	return object
}

func decodeRunConfig(raw json.RawMessage, report func(field string)) models.RunConfig {
	var config models.RunConfig
	var reporterOptions json.RawMessage
	decodeObject(raw, map[string]interface{}{
		"protocolVersion": &config.ProtocolVersion,
		"reporterOptions": &reporterOptions,
	}, report)
	decodeObject(reporterOptions, map[string]interface{}{
		"outputFile": &config.ReporterOptions.OutputFile,
	}, nested(report, "reporterOptions"))
	return config
}

func decodeGroup(raw json.RawMessage, report func(field string)) models.Group {
	var group models.Group
	decodeObject(raw, map[string]interface{}{
		"kind":  &group.Kind,
		"title": &group.Title,
	}, report)
	return group
}

func decodeTestIdentity(raw json.RawMessage, report func(field string)) models.TestIdentity {
	var test models.TestIdentity
	decodeObject(raw, map[string]interface{}{
		"uniqueId":   &test.UniqueID,
		"title":      &test.Title,
		"sourceFile": &test.SourceFile,
		"groupTitle": &test.GroupTitle,
	}, report)
	return test
}

// decodeTestOutcome never fails. A status that cannot be read stays empty, which is reported as a failure.
func decodeTestOutcome(raw json.RawMessage, report func(field string)) models.TestOutcome {
	var outcome models.TestOutcome
	var testErr json.RawMessage
	decodeObject(raw, map[string]interface{}{
		"status":     &outcome.Status,
		"durationMs": &outcome.DurationMs,
		"error":      &testErr,
	}, report)

	if len(testErr) > 0 && string(testErr) != "null" {
		var e models.TestError
		if decodeObject(testErr, map[string]interface{}{
			"message": &e.Message,
			"stack":   &e.Stack,
		}, nested(report, "error")) != nil {
			outcome.Error = &e
		}
	}
	return outcome
}

func decodeRunResult(raw json.RawMessage, report func(field string)) models.RunResult {
	var result models.RunResult
	decodeObject(raw, map[string]interface{}{
		"totalDurationMs": &result.TotalDurationMs,
	}, report)
	return result
}

func nested(report func(field string), prefix string) func(field string) {
	return func(field string) {
		if field == "" {
			report(prefix)
			return
		}
		report(prefix + "." + field)
	}
}
