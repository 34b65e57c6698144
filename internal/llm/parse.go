package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyReply   = errors.New("empty reply")
	ErrNoJSONArray  = errors.New("no JSON array found")
	ErrInvalidJSON  = errors.New("invalid JSON")
	ErrEmptyArray   = errors.New("empty workout list")
	ErrMissingField = errors.New("missing required field")
	ErrInvalidEntry = errors.New("invalid workout entry")
)

// ExtractJSONArray returns the substring between the first '[' and the last
// ']' of content. Models wrap JSON in prose or code fences; anything outside
// that span is ignored.
func ExtractJSONArray(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyReply
	}
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSONArray
	}
	return content[start : end+1], nil
}

// ParseEntries decodes an extracted array. Every element must be an object
// holding all RequiredFields. Numeric fields accept JSON numbers or numeric
// strings; fractional values are truncated.
func ParseEntries(payload string) ([]WorkoutEntry, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyArray
	}

	entries := make([]WorkoutEntry, 0, len(items))
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrInvalidEntry, i)
		}
		for _, key := range RequiredFields {
			if _, ok := fields[key]; !ok {
				return nil, fmt.Errorf("%w: element %d has no %q", ErrMissingField, i, key)
			}
		}

		entry, err := decodeEntry(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidEntry, i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeEntry(fields map[string]json.RawMessage) (WorkoutEntry, error) {
	var (
		entry WorkoutEntry
		err   error
	)
	if entry.Week, err = decodeInt(fields["week"]); err != nil {
		return entry, fmt.Errorf("week: %w", err)
	}
	if entry.Day, err = decodeInt(fields["day"]); err != nil {
		return entry, fmt.Errorf("day: %w", err)
	}
	if entry.Duration, err = decodeInt(fields["duration"]); err != nil {
		return entry, fmt.Errorf("duration: %w", err)
	}
	if entry.Activity, err = decodeString(fields["activity"]); err != nil {
		return entry, fmt.Errorf("activity: %w", err)
	}
	if entry.Description, err = decodeString(fields["description"]); err != nil {
		return entry, fmt.Errorf("description: %w", err)
	}
	return entry, nil
}

func decodeInt(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		text = strings.TrimSpace(text)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || f >= math.MaxInt || f < math.MinInt {
		return 0, fmt.Errorf("%s is not a number", string(raw))
	}
	return int(f), nil
}

func decodeString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s is not a string", string(raw))
	}
	return strings.TrimSpace(s), nil
}
