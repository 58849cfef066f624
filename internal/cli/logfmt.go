package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Paintersrp/procwarden/internal/supervise"
)

type eventRecord struct {
	Timestamp time.Time `json:"ts"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	PID       int       `json:"pid,omitempty"`
	Parent    int       `json:"parent,omitempty"`
	Signal    string    `json:"signal,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Message   string    `json:"msg,omitempty"`
}

func newEventRecord(event supervise.Event) eventRecord {
	return eventRecord{
		Timestamp: event.Timestamp,
		RunID:     event.RunID,
		Type:      string(event.Type),
		PID:       event.PID,
		Parent:    event.Parent,
		Signal:    event.Signal,
		Outcome:   event.Outcome,
		Message:   event.Message,
	}
}

func encodeEvent(enc *json.Encoder, stderr io.Writer, event supervise.Event) {
	if enc == nil {
		return
	}
	record := newEventRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode event: %v\n", err)
	}
}
