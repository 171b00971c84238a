// Copyright (c) 2025 loonghao
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package events defines the typed event stream the core emits toward the
// embedding CLI. The core never writes to terminals; everything a user sees
// about progress flows through a Sink.
package events

import "sync"

// Type identifies one event kind.
type Type int

const (
	// ResolveStarted is emitted when version resolution begins for a tool.
	ResolveStarted Type = iota
	// ResolveCompleted carries the selected version.
	ResolveCompleted
	// DownloadStarted carries the source URL and, when known, the total size.
	DownloadStarted
	// DownloadProgress carries running byte counts.
	DownloadProgress
	// DownloadCompleted is emitted when the archive is fully cached.
	DownloadCompleted
	// ExtractStarted is emitted before archive extraction.
	ExtractStarted
	// ExtractCompleted is emitted after extraction and layout.
	ExtractCompleted
	// PostExtractAction names one post-extract action as it runs.
	PostExtractAction
	// InstallPublished carries the final install root.
	InstallPublished
	// InstallFailed carries the pipeline error.
	InstallFailed
	// ExecStarted carries the child pid.
	ExecStarted
	// ExecExited carries the child exit code.
	ExecExited
	// Warning carries a non-fatal diagnostic (stale cache, skipped action).
	Warning
)

// String returns the event name as rendered in debug logs.
func (t Type) String() string {
	switch t {
	case ResolveStarted:
		return "resolve_started"
	case ResolveCompleted:
		return "resolve_completed"
	case DownloadStarted:
		return "download_started"
	case DownloadProgress:
		return "download_progress"
	case DownloadCompleted:
		return "download_completed"
	case ExtractStarted:
		return "extract_started"
	case ExtractCompleted:
		return "extract_completed"
	case PostExtractAction:
		return "post_extract_action"
	case InstallPublished:
		return "install_published"
	case InstallFailed:
		return "install_failed"
	case ExecStarted:
		return "exec_started"
	case ExecExited:
		return "exec_exited"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Event is one core event. Fields are populated per Type; unset fields are
// zero.
type Event struct {
	Type     Type
	Provider string
	Version  string

	// Download fields.
	URL        string
	BytesDone  int64
	BytesTotal int64 // -1 when unknown

	// Action and publish fields.
	Action string
	Path   string

	// Exec fields.
	Pid      int
	ExitCode int

	// Failure and warning fields.
	Err     error
	Message string
}

// Sink receives events. Implementations must be safe for concurrent use;
// install pipelines for different fingerprints emit in parallel.
type Sink interface {
	Emit(Event)
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// Func adapts a function to the Sink interface.
type Func func(Event)

// Emit calls f.
func (f Func) Emit(e Event) { f(e) }

// Collector is a Sink that records events in order. Intended for tests.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends the event.
func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a snapshot of the recorded events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Types returns the recorded event types in order.
func (c *Collector) Types() []Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Type, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

// Count returns how many events of the given type were recorded.
func (c *Collector) Count(t Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
