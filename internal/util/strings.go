package util

import "strings"

// DefaultString returns fallback if v is empty or whitespace-only.
func DefaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// EmptyDash renders a blank optional field as "-" in tables.
func EmptyDash(s string) string {
	return DefaultString(s, "-")
}

// Mask hides a secret for display while keeping its presence visible.
func Mask(secret string) string {
	if secret == "" {
		return "-"
	}
	return "••••"
}
