// Package logtail reads the tail of the feedsync log file for the UI log pane.
//
// Read extracts the last N lines with a single pass over a ring buffer, so
// memory stays proportional to N rather than to the file size. A missing file
// is not an error; the pane simply starts empty.
//
// Parse and Filter understand the key=value records written by slog's text
// handler:
//
//	time=2026-10-17T14:32:15.000Z level=WARN msg="fetch failed" key=conversation/c1 error="remote unavailable"
//
// Lines that do not look like records are kept as plain info-level messages.
package logtail
