package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseMillis converts a decimal such as "5", "5.1" or "1.500" into
// milli-units without going through floating point.
func parseMillis(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "VvAa")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("empty value")
	}
	if len(frac) > 3 {
		return 0, fmt.Errorf("%q: at most 3 decimals", s)
	}
	if whole == "" {
		whole = "0"
	}
	frac += strings.Repeat("0", 3-len(frac))
	w, err := strconv.ParseUint(whole, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	f, err := strconv.ParseUint(frac, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	return int(w)*1000 + int(f), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", s)
}
