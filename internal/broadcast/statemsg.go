package broadcast

import (
	"strconv"

	"argus/internal/event"
	"argus/internal/threadstate"
)

// MarshalStateSnapshot renders the same THREAD_STATE_UPDATE message a
// state tick would broadcast, for replay to a newly-subscribed client.
func MarshalStateSnapshot(entries []threadstate.Entry, counts threadstate.Counts) []byte {
	return marshalStateUpdate(entries, counts)
}

// marshalStateUpdate renders the THREAD_STATE_UPDATE wire message
// (spec.md §6) by hand, matching the event package's low-allocation
// byte-buffer marshaling style rather than reflection-based encoding/json.
func marshalStateUpdate(entries []threadstate.Entry, counts threadstate.Counts) []byte {
	var b []byte
	b = append(b, `{"type":"THREAD_STATE_UPDATE","counts":{`...)
	b = append(b, `"running":`...)
	b = strconv.AppendInt(b, int64(counts.Running), 10)
	b = append(b, `,"pinned":`...)
	b = strconv.AppendInt(b, int64(counts.Pinned), 10)
	b = append(b, `,"ended":`...)
	b = strconv.AppendInt(b, int64(counts.Ended), 10)
	b = append(b, `},"threads":[`...)

	for i, e := range entries {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, `{"threadId":`...)
		b = strconv.AppendUint(b, e.ThreadID, 10)
		b = append(b, `,"threadName":`...)
		b = strconv.AppendQuote(b, e.ThreadName)
		if e.CarrierID != event.UnknownCarrier {
			b = append(b, `,"carrierThread":`...)
			b = strconv.AppendInt(b, e.CarrierID, 10)
		}
		b = append(b, `,"state":`...)
		b = strconv.AppendQuote(b, e.State.String())
		b = append(b, `,"isPinned":`...)
		b = strconv.AppendBool(b, e.IsPinned)
		b = append(b, `,"startTime":`...)
		b = strconv.AppendQuote(b, e.StartTime.UTC().Format("2006-01-02T15:04:05.000000000Z"))
		if !e.EndTime.IsZero() {
			b = append(b, `,"endTime":`...)
			b = strconv.AppendQuote(b, e.EndTime.UTC().Format("2006-01-02T15:04:05.000000000Z"))
		}
		b = append(b, '}')
	}
	b = append(b, ']', '}')
	return b
}
