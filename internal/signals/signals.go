// Package signals pulls approach-minima values (MDA, DA, RVR, ...) out of page
// text and reports which of them changed between two revisions.
package signals

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/spherical/pdf-diff/internal/domain"
)

const (
	num = `\d+(?:\.\d+)?`
	deg = `\d{2,3}(?:\.\d+)?(?:°|º)?`

	remarksLength = 400
	missing       = "—"
)

// Keys lists the compared signals in report order.
var Keys = []string{"MDA", "DA", "OCA", "OCH", "RVR", "VIS", "CAT", "COURSE", "DME"}

// RemarksKey is reported after Keys when the remark blocks differ.
const RemarksKey = "REMARKS"

var patterns = map[string]*regexp.Regexp{
	"MDA":    heightPattern("MDA"),
	"DA":     heightPattern("DA"),
	"OCA":    heightPattern("OCA"),
	"OCH":    heightPattern("OCH"),
	"RVR":    plainPattern("RVR"),
	"VIS":    plainPattern("VIS"),
	"CAT":    regexp.MustCompile(`(?i)\bCAT\s*(I{1,3}|[123])\b`),
	"COURSE": regexp.MustCompile(`(?i)\b(?:FINAL\s+COURSE|COURSE|QDM|QDR|TRACK)\b[:\-\s]*(` + deg + `)`),
	"DME":    regexp.MustCompile(`(?is)\bDME\b.*?(` + num + `)\s*NM`),
}

var (
	remarksPattern = regexp.MustCompile(`(?i)\b(?:REMARKS?|NOTES?)\b[:\-]?`)
	numberPattern  = regexp.MustCompile(`-?` + num)
)

func heightPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + key + `\b[:\-\s]*(` + num + `)\s*FT`)
}

func plainPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + key + `\b[:\-\s]*(` + num + `)\b`)
}

// Signals holds every value found per key, in text order.
type Signals struct {
	Values  map[string][]string
	Remarks []string
}

// Extract scans text for all known signals.
func Extract(text string) Signals {
	s := Signals{Values: make(map[string][]string, len(Keys))}
	for _, key := range Keys {
		for _, m := range patterns[key].FindAllStringSubmatch(text, -1) {
			s.Values[key] = append(s.Values[key], strings.ToUpper(m[1]))
		}
	}

	for _, loc := range remarksPattern.FindAllStringIndex(text, -1) {
		rest := []rune(text[loc[1]:])
		if len(rest) > remarksLength {
			rest = rest[:remarksLength]
		}
		if block := strings.TrimSpace(string(rest)); block != "" {
			s.Remarks = append(s.Remarks, block)
		}
	}
	return s
}

// Line renders a change as a single summary line.
func Line(c domain.SignalChange) string {
	line := fmt.Sprintf("%s: OLD %s -> NEW %s", c.Key, c.Old, c.New)
	if c.Delta != "" {
		line += " " + c.Delta
	}
	return line
}

// Compare extracts signals from both texts and returns the changed values.
// Values are paired by occurrence; a value present on only one side is
// reported against "—".
func Compare(oldText, newText string) []domain.SignalChange {
	a, b := Extract(oldText), Extract(newText)

	var changes []domain.SignalChange
	for _, key := range Keys {
		changes = append(changes, pairwise(key, a.Values[key], b.Values[key])...)
	}
	if !slices.Equal(a.Remarks, b.Remarks) {
		changes = append(changes, domain.SignalChange{
			Key: RemarksKey,
			Old: fmt.Sprintf("%d block(s)", len(a.Remarks)),
			New: fmt.Sprintf("%d block(s)", len(b.Remarks)),
		})
	}
	return changes
}

func pairwise(key string, olds, news []string) []domain.SignalChange {
	var out []domain.SignalChange
	for i := 0; i < max(len(olds), len(news)); i++ {
		o, n := at(olds, i), at(news, i)
		if o == n {
			continue
		}
		out = append(out, domain.SignalChange{Key: key, Old: o, New: n, Delta: delta(o, n)})
	}
	return out
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return missing
}

func delta(oldVal, newVal string) string {
	o, okOld := firstNumber(oldVal)
	n, okNew := firstNumber(newVal)
	if !okOld || !okNew {
		return ""
	}
	d := n - o
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}
	return "(" + sign + strconv.FormatFloat(d, 'f', -1, 64) + ")"
}

func firstNumber(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}
