package logger

import "time"

// ComponentKey is the field name identifying the subsystem behind a log line.
const ComponentKey = "component"

// Entry is a log line as seen by a Sink.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	Fields  map[string]interface{}
}

// Component returns the component field of the entry, or "".
func (e Entry) Component() string {
	if v, ok := e.Fields[ComponentKey].(string); ok {
		return v
	}
	return ""
}

// Sink receives a copy of every info, warn and error line.
// Write must not block.
type Sink interface {
	Write(e Entry)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Entry)

func (f SinkFunc) Write(e Entry) { f(e) }

// boundSink merges a child logger's fields into each entry.
type boundSink struct {
	sink   Sink
	fields []Field
}

func (b boundSink) Write(e Entry) {
	merged := make(map[string]interface{}, len(e.Fields)+len(b.fields))
	for _, f := range b.fields {
		k, v := f.GetKeyValue()
		merged[k] = v
	}
	for k, v := range e.Fields {
		merged[k] = v
	}
	e.Fields = merged
	b.sink.Write(e)
}
