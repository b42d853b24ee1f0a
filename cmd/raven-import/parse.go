package main

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"ravenwatch/internal/config"
)

// parseURLList reads lines of the form
//
//	url [expected_status_code] [expected_location] [required substring ...]
//
// Blank lines and lines starting with # are ignored. Use "-" to leave a
// positional field unset.
func parseURLList(r io.Reader, prefix string) ([]config.MonitorConfig, []string, error) {
	var (
		monitors []config.MonitorConfig
		skipped  []string
		used     = make(map[string]bool)
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		target := fields[0]
		if !config.IsValidURL(target) {
			skipped = append(skipped, fmt.Sprintf("line %d: invalid url %q", lineNo, target))
			continue
		}

		m := config.MonitorConfig{URL: target, Name: target}
		if len(fields) > 1 && fields[1] != "-" {
			if _, err := strconv.Atoi(fields[1]); err != nil {
				skipped = append(skipped, fmt.Sprintf("line %d: invalid status code %q", lineNo, fields[1]))
				continue
			}
			m.ExpectedStatusCode = fields[1]
		}
		if len(fields) > 2 && fields[2] != "-" {
			m.ExpectedLocation = fields[2]
		}
		if len(fields) > 3 {
			m.RequiredSubstring = strings.Join(fields[3:], " ")
		}

		base := prefix + monitorID(target)
		id := base
		for n := 2; used[id]; n++ {
			id = fmt.Sprintf("%s-%d", base, n)
		}
		used[id] = true
		m.ID = id

		monitors = append(monitors, m)
	}
	return monitors, skipped, scanner.Err()
}

// monitorID derives a readable ID from the host and path, e.g.
// "https://shop.example.com/health" becomes "shop-example-com-health".
func monitorID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "monitor"
	}
	base := u.Hostname() + u.Path
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	id := strings.TrimSuffix(b.String(), "-")
	if id == "" {
		return "monitor"
	}
	return id
}
