package models

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/utils"
)

func TestFiscalYearWindow(t *testing.T) {
	cases := []struct {
		label string
		start string
		end   string
	}{
		{"2025-26", "2025-07-01", "2026-06-30"},
		{"2024-25", "2024-07-01", "2025-06-30"},
		{"1999-00", "1999-07-01", "2000-06-30"},
		{"2099-00", "2099-07-01", "2100-06-30"},
	}
	for _, c := range cases {
		start, end, err := FiscalYearWindow(c.label)
		if err != nil {
			t.Errorf("%s: %v", c.label, err)
			continue
		}
		if got := start.Format("2006-01-02"); got != c.start {
			t.Errorf("%s: start %s, want %s", c.label, got, c.start)
		}
		if got := end.Format("2006-01-02"); got != c.end {
			t.Errorf("%s: end %s, want %s", c.label, got, c.end)
		}
	}
}

func TestFiscalYearWindowRejectsMalformedLabels(t *testing.T) {
	for _, label := range []string{
		"", "2025", "2025-2026", "25-26", "2025-27", "2025-25", "abcd-ef", "2025/26",
	} {
		_, _, err := FiscalYearWindow(label)
		var validation *utils.ValidationError
		if !errors.As(err, &validation) {
			t.Errorf("%q: got %v, want ValidationError", label, err)
		}
	}
}

func TestFiscalYearWindowCoversPayoutDate(t *testing.T) {
	start, end, err := FiscalYearWindow("2025-26")
	if err != nil {
		t.Fatal(err)
	}
	paid := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	if paid.Before(start) || paid.After(end) {
		t.Errorf("March 2026 payout should fall inside 2025-26 window [%s, %s]", start, end)
	}
	outside := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	if !outside.After(end) {
		t.Errorf("July 2026 payout should fall outside 2025-26 window")
	}
}
