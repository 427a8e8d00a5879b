package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var seqRe = regexp.MustCompile(`\{SEQ(\d*)\}`)

// Number renders an invoice number from template for the given creation time and sequence.
func Number(template string, createdAt time.Time, seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}
	if !seqRe.MatchString(template) {
		return "", fmt.Errorf("invoice number template %q has no sequence token", template)
	}

	out := seqRe.ReplaceAllStringFunc(expandDate(template, createdAt), func(token string) string {
		width, _ := strconv.Atoi(seqRe.FindStringSubmatch(token)[1])
		return fmt.Sprintf("%0*d", width, seq)
	})
	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in invoice number %q", out)
	}
	return out, nil
}

// Prefix is the part of the rendered number before the sequence; numbers sharing it share a sequence.
func Prefix(template string, createdAt time.Time) string {
	loc := seqRe.FindStringIndex(template)
	if loc == nil {
		return expandDate(template, createdAt)
	}
	return expandDate(template[:loc[0]], createdAt)
}

func expandDate(template string, t time.Time) string {
	return strings.NewReplacer(
		"{YYYY}", t.Format("2006"),
		"{YY}", t.Format("06"),
		"{MM}", t.Format("01"),
		"{DD}", t.Format("02"),
	).Replace(template)
}
