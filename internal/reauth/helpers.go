package reauth

import (
	"strconv"
	"strings"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
