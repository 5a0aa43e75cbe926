package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetCloseFlags() {
	closeOrganization = "shop-1"
	closeFrom = ""
	closeTo = ""
	closeStartingBalance = "0"
	closePeriod = ""
	closeCashStarting = "0"
	closeCashEnding = ""
	closeCounts = nil
	closeNotes = ""
	closeDryRun = false
}

func setViperValue(t *testing.T, key, value string) {
	t.Helper()
	previous := viper.GetString(key)
	viper.Set(key, value)
	t.Cleanup(func() { viper.Set(key, previous) })
}

func TestValidateCloseFlags(t *testing.T) {
	tests := []struct {
		name        string
		period      string
		from        string
		to          string
		cashEnding  string
		format      string
		expectError bool
	}{
		{
			name:   "bulk range",
			from:   "2025-03-01",
			to:     "2025-03-07",
			format: "console",
		},
		{
			name:       "single period",
			period:     "2025-03-01",
			cashEnding: "340.50",
			format:     "console",
		},
		{
			name:        "missing range and period",
			format:      "console",
			expectError: true,
		},
		{
			name:        "period combined with range",
			period:      "2025-03-01",
			from:        "2025-03-01",
			to:          "2025-03-07",
			cashEnding:  "340.50",
			format:      "console",
			expectError: true,
		},
		{
			name:        "period without cash ending",
			period:      "2025-03-01",
			format:      "console",
			expectError: true,
		},
		{
			name:        "invalid output format",
			from:        "2025-03-01",
			to:          "2025-03-07",
			format:      "xml",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetCloseFlags()
			closePeriod = tt.period
			closeFrom = tt.from
			closeTo = tt.to
			closeCashEnding = tt.cashEnding
			setViperValue(t, "output-format", tt.format)

			err := validateCloseFlags(closeCmd, nil)

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	date, counted, err := parseCount("2025-03-02=340.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !date.Equal(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date: %v", date)
	}
	if counted.StringFixed(2) != "340.50" {
		t.Errorf("unexpected amount: %s", counted)
	}

	for _, raw := range []string{"2025-03-02", "03/02=100", "2025-03-02=abc"} {
		if _, _, err := parseCount(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestParseDay(t *testing.T) {
	if _, err := parseDay("from", "2025-03-01"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	_, err := parseDay("from", "01.03.2025")
	if err == nil {
		t.Fatal("expected error for non-ISO date")
	}
	if !strings.Contains(err.Error(), "--from") {
		t.Errorf("error should name the flag: %v", err)
	}
}

func TestOpenOutput(t *testing.T) {
	writer, closeWriter, err := openOutput("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writer != os.Stdout {
		t.Error("empty path should write to stdout")
	}
	closeWriter()

	path := filepath.Join(t.TempDir(), "report.json")
	writer, closeWriter, err = openOutput(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := writer.WriteString("{}"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	closeWriter()

	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(payload) != "{}" {
		t.Errorf("unexpected file content: %s", payload)
	}
}
