package helpers

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRunRegex      = regexp.MustCompile(`\d[\d.,]*`)
	thousandsOnlyRegex = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
)

// ParseGermanPrice extracts the first numeric run from text and parses it in
// German notation ("1.299,90 €" -> 1299.90). It returns nil when nothing parses.
func ParseGermanPrice(text string) *float64 {
	run := priceRunRegex.FindString(text)
	run = strings.TrimRight(run, ".,")
	if run == "" {
		return nil
	}

	switch {
	case strings.Contains(run, ","):
		run = strings.ReplaceAll(run, ".", "")
		run = strings.Replace(run, ",", ".", 1)
	case thousandsOnlyRegex.MatchString(run):
		run = strings.ReplaceAll(run, ".", "")
	}

	value, err := strconv.ParseFloat(run, 64)
	if err != nil || value < 0 {
		return nil
	}
	return &value
}
