package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// currencyUnit is the glyph printed after won amounts.
const currencyUnit = "원"

var (
	amountRE        = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)\s*원`)
	maskedAccountRE = regexp.MustCompile(`\d{3,4}-\d{3}-\d{3,4}\*+`)
	plainAccountRE  = regexp.MustCompile(`\d{3,4}-\d{3}-\d{3,4}`)
	numberTokenRE   = regexp.MustCompile(`\d[\d,.]{0,10}`)

	// order matters: the first pattern that matches wins.
	datetimeREs = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2}/\d{1,2})\s*(\d{1,2}:\d{2}:\d{2})`),
		regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*(\d{2}:\d{2}:\d{2})`),
		regexp.MustCompile(`(\d{4}\.\d{2}\.\d{2})\s*(\d{2}:\d{2}:\d{2})`),
		regexp.MustCompile(`(\d{4})(\d{2})(\d{2})[T\s]*(\d{2})(\d{2})(\d{2})`),
	}
)

// ExtractAmount returns the first won amount (digits followed by 원) in text.
// A match that starts inside a longer number or comma group is skipped.
func ExtractAmount(text string) (int64, bool) {
	for _, m := range amountRE.FindAllStringSubmatchIndex(text, -1) {
		if midNumber(text, m[2]) {
			continue
		}
		v, err := strconv.ParseInt(strings.ReplaceAll(text[m[2]:m[3]], ",", ""), 10, 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

// midNumber reports whether the digit run at start continues a number to its
// left, either directly or across a thousands comma.
func midNumber(text string, start int) bool {
	if start == 0 {
		return false
	}
	prev := text[start-1]
	if prev >= '0' && prev <= '9' {
		return true
	}
	return prev == ',' && start >= 2 && text[start-2] >= '0' && text[start-2] <= '9'
}

// ExtractAccount returns a bank account number, preferring the masked form.
func ExtractAccount(text string) (string, bool) {
	if m := maskedAccountRE.FindString(text); m != "" {
		return m, true
	}
	if m := plainAccountRE.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// ExtractDatetime returns a "<date> <time>" string for the first matching
// pattern. The compact YYYYMMDDHHMMSS form is reformatted to
// "YYYY-MM-DD HH:MM:SS".
func ExtractDatetime(text string) (string, bool) {
	for _, re := range datetimeREs {
		m := re.FindStringSubmatch(text)
		switch len(m) {
		case 3:
			return m[1] + " " + m[2], true
		case 7:
			return m[1] + "-" + m[2] + "-" + m[3] + " " + m[4] + ":" + m[5] + ":" + m[6], true
		}
	}
	return "", false
}

// LastNumber returns the last nonzero numeric token in text.
func LastNumber(text string) (int64, bool) {
	tokens := numberTokenRE.FindAllString(text, -1)
	for i := len(tokens) - 1; i >= 0; i-- {
		digits := onlyDigits(tokens[i])
		if digits == "" {
			continue
		}
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || v == 0 {
			continue
		}
		return v, true
	}
	return 0, false
}

// LongestHangulLine returns the longest (by character count) line text that
// contains Hangul. Ties keep the earlier line.
func LongestHangulLine(lines []Line) (string, bool) {
	best, bestLen := "", -1
	for _, l := range lines {
		if !hasHangul(l.Text) {
			continue
		}
		if n := utf8.RuneCountInString(l.Text); n > bestLen {
			best, bestLen = l.Text, n
		}
	}
	if bestLen < 0 {
		return "", false
	}
	return strings.TrimSpace(best), true
}
