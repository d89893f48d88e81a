package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Line is one parsed record of slog's text format.
type Line struct {
	Raw     string
	Time    string
	Level   slog.Level
	Message string
	Attrs   []Attr
}

// Attr is a key=value pair following the message.
type Attr struct {
	Key   string
	Value string
}

// Parse splits a text-handler record into its fields. Lines that are not
// key=value records come back with only Raw and Message set, at info level.
func Parse(raw string) Line {
	line := Line{Raw: raw, Level: slog.LevelInfo}
	pairs := splitPairs(raw)
	if len(pairs) == 0 {
		line.Message = raw
		return line
	}
	for _, p := range pairs {
		switch p.Key {
		case slog.TimeKey:
			line.Time = p.Value
		case slog.LevelKey:
			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(p.Value)); err == nil {
				line.Level = lvl
			}
		case slog.MessageKey:
			line.Message = p.Value
		default:
			line.Attrs = append(line.Attrs, p)
		}
	}
	return line
}

// Filter keeps lines at or above min, preserving order.
func Filter(lines []string, min slog.Level) []Line {
	out := make([]Line, 0, len(lines))
	for _, raw := range lines {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		l := Parse(raw)
		if l.Level < min {
			continue
		}
		out = append(out, l)
	}
	return out
}

// splitPairs tokenizes key=value pairs, honouring double-quoted values.
func splitPairs(s string) []Attr {
	var (
		pairs []Attr
		i     int
	)
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq <= 0 {
			return nil
		}
		key := s[i : i+eq]
		if strings.ContainsAny(key, " \"") {
			return nil
		}
		i += eq + 1

		var value string
		if i < len(s) && s[i] == '"' {
			end := i + 1
			var b strings.Builder
			for end < len(s) && s[end] != '"' {
				if s[end] == '\\' && end+1 < len(s) {
					end++
				}
				b.WriteByte(s[end])
				end++
			}
			value = b.String()
			i = end + 1
		} else {
			end := strings.IndexByte(s[i:], ' ')
			if end < 0 {
				end = len(s) - i
			}
			value = s[i : i+end]
			i += end
		}
		pairs = append(pairs, Attr{Key: key, Value: value})
	}
	return pairs
}
