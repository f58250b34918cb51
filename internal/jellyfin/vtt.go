package jellyfin

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tversen/flick/internal/domain"
)

// ParseWebVTT parses a WebVTT subtitle stream into cues. Styling blocks
// (STYLE, NOTE, REGION) are skipped; cue settings after the timing line
// are ignored.
func ParseWebVTT(r io.Reader) ([]domain.SubtitleCue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	// Header line
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty subtitle stream")
	}
	header := strings.TrimPrefix(scanner.Text(), "\uFEFF")
	if !strings.HasPrefix(header, "WEBVTT") {
		return nil, fmt.Errorf("not a WebVTT stream")
	}

	var cues []domain.SubtitleCue
	var pendingID string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			pendingID = ""
			continue
		}
		if strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE") || strings.HasPrefix(line, "REGION") {
			skipBlock(scanner)
			continue
		}

		if !strings.Contains(line, "-->") {
			// Optional cue identifier precedes the timing line
			pendingID = line
			continue
		}

		start, end, err := parseTimingLine(line)
		if err != nil {
			return nil, err
		}

		var text []string
		for scanner.Scan() {
			cueLine := scanner.Text()
			if strings.TrimSpace(cueLine) == "" {
				break
			}
			text = append(text, cueLine)
		}

		id := pendingID
		if id == "" {
			id = fmt.Sprintf("%d", len(cues)+1)
		}
		pendingID = ""

		cues = append(cues, domain.SubtitleCue{
			ID:    id,
			Start: start,
			End:   end,
			Text:  strings.Join(text, "\n"),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle stream: %w", err)
	}
	return cues, nil
}

// skipBlock consumes lines until the next blank line
func skipBlock(scanner *bufio.Scanner) {
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			return
		}
	}
}

// parseTimingLine parses "00:01:02.500 --> 00:01:05.000" with optional
// trailing cue settings
func parseTimingLine(line string) (start, end time.Duration, err error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed cue timing: %q", line)
	}

	start, err = parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}

	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("malformed cue timing: %q", line)
	}
	end, err = parseTimestamp(endField[0])
	if err != nil {
		return 0, 0, err
	}

	return start, end, nil
}

// parseTimestamp parses "hh:mm:ss.mmm" or "mm:ss.mmm"
func parseTimestamp(ts string) (time.Duration, error) {
	var h, m, s, ms int
	switch strings.Count(ts, ":") {
	case 2:
		if _, err := fmt.Sscanf(ts, "%d:%d:%d.%d", &h, &m, &s, &ms); err != nil {
			return 0, fmt.Errorf("malformed timestamp %q: %w", ts, err)
		}
	case 1:
		if _, err := fmt.Sscanf(ts, "%d:%d.%d", &m, &s, &ms); err != nil {
			return 0, fmt.Errorf("malformed timestamp %q: %w", ts, err)
		}
	default:
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
