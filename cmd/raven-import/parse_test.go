package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"ravenwatch/internal/config"
)

func TestParseURLList(t *testing.T) {
	input := `
# storefront
https://shop.example.com/health 200 - OK
https://shop.example.com/health
http://old.example.com 301 /new
ftp://nope.example.com
https://api.example.com abc
https://status.example.com - - all systems operational
`
	monitors, skipped, err := parseURLList(strings.NewReader(input), "web-")
	if err != nil {
		t.Fatalf("parseURLList: %v", err)
	}
	if len(skipped) != 2 {
		t.Errorf("skipped = %v, want 2 entries", skipped)
	}
	if len(monitors) != 4 {
		t.Fatalf("monitors = %d, want 4", len(monitors))
	}

	first := monitors[0]
	if first.ID != "web-shop-example-com-health" || first.ExpectedStatusCode != "200" || first.ExpectedLocation != "" || first.RequiredSubstring != "OK" {
		t.Errorf("first = %+v", first)
	}
	if monitors[1].ID != "web-shop-example-com-health-2" {
		t.Errorf("duplicate id = %q", monitors[1].ID)
	}
	if monitors[2].ExpectedLocation != "/new" || monitors[2].ExpectedStatusCode != "301" {
		t.Errorf("redirect monitor = %+v", monitors[2])
	}
	if monitors[3].RequiredSubstring != "all systems operational" {
		t.Errorf("substring = %q", monitors[3].RequiredSubstring)
	}
}

func TestParseURLListSuffixesNeverCollide(t *testing.T) {
	input := `
https://a.example/x
https://a.example/x-2
https://a.example/x
https://a.example/x
`
	monitors, _, err := parseURLList(strings.NewReader(input), "")
	if err != nil {
		t.Fatalf("parseURLList: %v", err)
	}
	want := []string{"a-example-x", "a-example-x-2", "a-example-x-3", "a-example-x-4"}
	if len(monitors) != len(want) {
		t.Fatalf("monitors = %d, want %d", len(monitors), len(want))
	}
	for i, m := range monitors {
		if m.ID != want[i] {
			t.Errorf("monitors[%d].ID = %q, want %q", i, m.ID, want[i])
		}
	}
}

func TestWriteMonitorsRoundTripsThroughConfig(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "monitors.yaml")
	monitors := []config.MonitorConfig{{ID: "a", Name: "A", URL: "https://a.example"}}

	if err := writeMonitors(monitors, out); err != nil {
		t.Fatalf("writeMonitors: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var partial config.PartialConfig
	if err := yaml.Unmarshal(data, &partial); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(partial.Monitors) != 1 || partial.Monitors[0].URL != "https://a.example" {
		t.Errorf("partial = %+v", partial)
	}
}
