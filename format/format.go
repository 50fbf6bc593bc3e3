// Package format implements the string and numeric format checks applied to
// primitive schema values.
//
// Every check is a pure function of its input. A nil *Violation means the value
// conforms; a non-nil one carries a human-readable text and the placeholders
// used to build it.
//
// See: https://spec.openapis.org/oas/v3.0.3#data-types
package format

import (
	"fmt"
	"math"
	"math/big"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/idna"
)

// Name identifies a value format.
//
// See: https://spec.openapis.org/oas/v3.0.3#data-types
type Name string

// Numeric formats.
const (
	Int32  Name = "int32"
	Int64  Name = "int64"
	Float  Name = "float"
	Double Name = "double"
)

// String formats.
const (
	Email    Name = "email"
	UUID     Name = "uuid"
	URL      Name = "url"
	Date     Name = "date"
	DateTime Name = "date-time"
	Time     Name = "time"
	Regex    Name = "regex"
	Byte     Name = "byte"
	Binary   Name = "binary"
	Password Name = "password"
	Hostname Name = "hostname"
)

// Violation describes a value that does not satisfy its format.
type Violation struct {
	Text   string
	Params map[string]any
}

func newViolation(name Name, value any, expected string) *Violation {
	return &Violation{
		Text:   fmt.Sprintf("value does not match format %q (expected %s)", name, expected),
		Params: map[string]any{"format": string(name), "value": value, "expected": expected},
	}
}

// IsOpaque reports whether values of the format are accepted without
// inspecting their content.
func IsOpaque(name Name) bool {
	switch name {
	case Byte, Binary, Password:
		return true
	}
	return false
}

// Known reports whether the name is a format this package understands.
func Known(name Name) bool {
	switch name {
	case Int32, Int64, Float, Double,
		Email, UUID, URL, Date, DateTime, Time, Regex, Byte, Binary, Password, Hostname:
		return true
	}
	return false
}

var (
	dateRegex     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimeRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,9})?(Z|[+-]\d{2}:\d{2})$`)
	timeRegex     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	localRegex    = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_{|}~-]+$`)

	// RFC 1035/1123: labels 1-63 chars.
	hostnameRegex = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
)

const maxHostnameLength = 253

// Check validates s against the named string format. Unknown formats and
// opaque formats always pass.
func Check(name Name, s string) *Violation {
	switch name {
	case Email:
		if !isEmail(s) {
			return newViolation(name, s, "an e-mail address")
		}
	case UUID:
		if !isUUID(s) {
			return newViolation(name, s, "a UUID such as 550e8400-e29b-41d4-a716-446655440000")
		}
	case URL:
		if !isURL(s) {
			return newViolation(name, s, "an absolute URL")
		}
	case Date:
		if !isDate(s) {
			return newViolation(name, s, "a calendar date as YYYY-MM-DD")
		}
	case DateTime:
		if !isDateTime(s) {
			return newViolation(name, s, "an RFC 3339 date-time")
		}
	case Time:
		if !isTime(s) {
			return newViolation(name, s, "a time as HH:MM:SS")
		}
	case Regex:
		if _, err := regexp.Compile(s); err != nil {
			return newViolation(name, s, "a valid regular expression")
		}
	case Hostname:
		if !isHostname(s) {
			return newViolation(name, s, "an RFC 1123 host name")
		}
	}
	return nil
}

// CheckInteger validates that the exact integer n fits the named numeric
// format. Floating point formats are checked on the nearest float64.
func CheckInteger(name Name, n *big.Int) *Violation {
	switch name {
	case Int32:
		if !n.IsInt64() || n.Int64() < math.MinInt32 || n.Int64() > math.MaxInt32 {
			return newViolation(name, integerValue(n), "a signed 32-bit integer")
		}
	case Int64:
		if !n.IsInt64() {
			return newViolation(name, integerValue(n), "a signed 64-bit integer")
		}
	case Float, Double:
		f, _ := new(big.Float).SetInt(n).Float64()
		return CheckNumber(name, f)
	}
	return nil
}

func integerValue(n *big.Int) any {
	if n.IsInt64() {
		return n.Int64()
	}
	return n.String()
}

// CheckNumber validates that n fits the named numeric format. Integral
// values should go through CheckInteger to avoid rounding.
func CheckNumber(name Name, n float64) *Violation {
	switch name {
	case Int32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return newViolation(name, n, "a signed 32-bit integer")
		}
	case Int64:
		// 2^63 is the first float64 above MaxInt64.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return newViolation(name, n, "a signed 64-bit integer")
		}
	case Float:
		if math.Abs(n) > math.MaxFloat32 {
			return newViolation(name, n, "a single precision number")
		}
	}
	return nil
}

// isDate requires the structural pattern and a parse/format round trip, so
// calendar-invalid values such as 2021-02-30 are rejected.
func isDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return false
	}
	return t.Format(time.DateOnly) == s
}

func isTime(s string) bool {
	if !timeRegex.MatchString(s) {
		return false
	}
	t, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		return false
	}
	return t.Format(time.TimeOnly) == s
}

func isDateTime(s string) bool {
	m := dateTimeRegex.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	layout := dateTimeLayout(m[1], m[2])
	t, err := time.Parse(layout, s)
	if err != nil {
		return false
	}
	return t.Format(layout) == s
}

// dateTimeLayout mirrors the shape of the input so that formatting the parsed
// value reproduces it exactly.
func dateTimeLayout(fraction, offset string) string {
	var b strings.Builder
	b.WriteString("2006-01-02T15:04:05")
	if fraction != "" {
		b.WriteString(".")
		b.WriteString(strings.Repeat("0", len(fraction)-1))
	}
	if offset == "Z" {
		b.WriteString("Z07:00")
	} else {
		b.WriteString("-07:00")
	}
	return b.String()
}

// isUUID accepts only the canonical hyphenated form; uuid.Parse alone also
// accepts urn and braced encodings.
func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isEmail(s string) bool {
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]
	if len(local) > 64 || !localRegex.MatchString(local) {
		return false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}
	ascii, ok := toASCII(domain)
	if !ok || !strings.Contains(ascii, ".") {
		return false
	}
	return true
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	// IP literals are not host names but are valid URL hosts.
	if _, err := netip.ParseAddr(host); err == nil {
		return true
	}
	_, ok := toASCII(host)
	return ok
}

func isHostname(s string) bool {
	ascii, ok := toASCII(s)
	return ok && len(ascii) <= maxHostnameLength
}

func toASCII(host string) (string, bool) {
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", false
	}
	if len(ascii) > maxHostnameLength || !hostnameRegex.MatchString(ascii) {
		return "", false
	}
	return ascii, true
}
