package format

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDate(t *testing.T) {
	t.Run("accepts calendar dates", func(t *testing.T) {
		for _, s := range []string{"2021-02-28", "2020-02-29", "1999-12-31"} {
			assert.Nil(t, Check(Date, s), s)
		}
	})

	t.Run("rejects calendar-invalid dates matching the pattern", func(t *testing.T) {
		for _, s := range []string{"2021-02-30", "2021-02-29", "2021-13-01", "2021-04-31", "2021-00-10"} {
			assert.NotNil(t, Check(Date, s), s)
		}
	})

	t.Run("rejects structural mismatches", func(t *testing.T) {
		for _, s := range []string{"2021-2-3", "21-02-03", "2021/02/03", "2021-02-03T00:00:00Z", ""} {
			assert.NotNil(t, Check(Date, s), s)
		}
	})

	t.Run("accepted dates round trip", func(t *testing.T) {
		s := "2024-07-15"
		require.Nil(t, Check(Date, s))

		parsed, err := time.Parse(time.DateOnly, s)
		require.NoError(t, err)
		assert.Equal(t, s, parsed.Format(time.DateOnly))
	})
}

func TestCheckDateTime(t *testing.T) {
	valid := []string{
		"2021-06-01T12:30:00Z",
		"2021-06-01T12:30:00+02:00",
		"2021-06-01T12:30:00-05:30",
		"2021-06-01T12:30:00.123Z",
		"2021-06-01T12:30:00.000001+00:00",
	}
	for _, s := range valid {
		t.Run("valid "+s, func(t *testing.T) {
			assert.Nil(t, Check(DateTime, s))
		})
	}

	invalid := []string{
		"2021-06-01",
		"2021-06-01 12:30:00Z",
		"2021-02-30T12:30:00Z",
		"2021-06-01T25:30:00Z",
		"2021-06-01T12:30:00",
		"2021-06-01t12:30:00z",
	}
	for _, s := range invalid {
		t.Run("invalid "+s, func(t *testing.T) {
			assert.NotNil(t, Check(DateTime, s))
		})
	}
}

func TestCheckTime(t *testing.T) {
	assert.Nil(t, Check(Time, "23:59:59"))
	assert.Nil(t, Check(Time, "00:00:00"))
	assert.NotNil(t, Check(Time, "24:00:00"))
	assert.NotNil(t, Check(Time, "12:60:00"))
	assert.NotNil(t, Check(Time, "1:00:00"))
}

func TestCheckUUID(t *testing.T) {
	assert.Nil(t, Check(UUID, "550e8400-e29b-41d4-a716-446655440000"))
	assert.Nil(t, Check(UUID, "550E8400-E29B-41D4-A716-446655440000"))
	assert.NotNil(t, Check(UUID, "550e8400e29b41d4a716446655440000"))
	assert.NotNil(t, Check(UUID, "{550e8400-e29b-41d4-a716-446655440000}"))
	assert.NotNil(t, Check(UUID, "urn:uuid:550e8400-e29b-41d4-a716-446655440000"))
	assert.NotNil(t, Check(UUID, "not-a-uuid"))
}

func TestCheckEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "simple", input: "user@example.com", want: true},
		{name: "dots", input: "first.last@example.com", want: true},
		{name: "plus", input: "user+tag@example.com", want: true},
		{name: "subdomain", input: "user@sub.example.com", want: true},
		{name: "hyphen in domain", input: "user@my-domain.com", want: true},
		{name: "internationalized domain", input: "user@bücher.example", want: true},
		{name: "missing at sign", input: "userexample.com", want: false},
		{name: "missing domain", input: "user@", want: false},
		{name: "missing local part", input: "@example.com", want: false},
		{name: "missing dot in domain", input: "user@example", want: false},
		{name: "double dot in local part", input: "a..b@example.com", want: false},
		{name: "space", input: "a b@example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(Email, tt.input) == nil
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckURL(t *testing.T) {
	assert.Nil(t, Check(URL, "https://example.com/path?q=1"))
	assert.Nil(t, Check(URL, "http://127.0.0.1:8080/"))
	assert.Nil(t, Check(URL, "http://[::1]/"))
	assert.NotNil(t, Check(URL, "/relative/path"))
	assert.NotNil(t, Check(URL, "example.com"))
	assert.NotNil(t, Check(URL, "https://"))
	assert.NotNil(t, Check(URL, "https://exa mple.com"))
}

func TestCheckHostname(t *testing.T) {
	assert.Nil(t, Check(Hostname, "example.com"))
	assert.Nil(t, Check(Hostname, "localhost"))
	assert.NotNil(t, Check(Hostname, "-bad.example.com"))
	assert.NotNil(t, Check(Hostname, "exa_mple.com"))
}

func TestCheckRegex(t *testing.T) {
	assert.Nil(t, Check(Regex, `^[a-z]+$`))
	assert.NotNil(t, Check(Regex, `([a-z`))
}

func TestOpaqueFormats(t *testing.T) {
	for _, name := range []Name{Byte, Binary, Password} {
		t.Run(string(name), func(t *testing.T) {
			assert.True(t, IsOpaque(name))
			assert.Nil(t, Check(name, "anything at all \x00"))
		})
	}
	assert.False(t, IsOpaque(Email))
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(Int32))
	assert.True(t, Known(Hostname))
	assert.False(t, Known("ipv4"))
	assert.False(t, Known(""))
}

func TestCheckNumber(t *testing.T) {
	assert.Nil(t, CheckNumber(Int32, math.MaxInt32))
	assert.Nil(t, CheckNumber(Int32, math.MinInt32))
	assert.NotNil(t, CheckNumber(Int32, math.MaxInt32+1))
	assert.Nil(t, CheckNumber(Int64, math.MaxInt32+1))
	assert.NotNil(t, CheckNumber(Int64, math.Pow(2, 63)))
	assert.Nil(t, CheckNumber(Float, 1.5))
	assert.NotNil(t, CheckNumber(Float, math.MaxFloat64))
	assert.Nil(t, CheckNumber(Double, math.MaxFloat64))
}

func TestCheckInteger(t *testing.T) {
	twoTo63, _ := new(big.Int).SetString("9223372036854775808", 10)
	belowMin := new(big.Int).Sub(big.NewInt(math.MinInt64), big.NewInt(1))

	tests := []struct {
		name   string
		format Name
		value  *big.Int
		ok     bool
	}{
		{"int64 max", Int64, big.NewInt(math.MaxInt64), true},
		{"int64 min", Int64, big.NewInt(math.MinInt64), true},
		{"int64 2^63", Int64, twoTo63, false},
		{"int64 below min", Int64, belowMin, false},
		{"int32 max", Int32, big.NewInt(math.MaxInt32), true},
		{"int32 min", Int32, big.NewInt(math.MinInt32), true},
		{"int32 above max", Int32, big.NewInt(math.MaxInt32 + 1), false},
		{"int32 huge", Int32, twoTo63, false},
		{"float", Float, big.NewInt(1 << 40), true},
		{"double", Double, twoTo63, true},
		{"no format", "", twoTo63, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckInteger(tt.format, tt.value)
			if tt.ok {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, string(tt.format), v.Params["format"])
		})
	}

	t.Run("params keep exact text", func(t *testing.T) {
		v := CheckInteger(Int64, twoTo63)
		require.NotNil(t, v)
		assert.Equal(t, "9223372036854775808", v.Params["value"])

		v = CheckInteger(Int32, big.NewInt(math.MaxInt32+1))
		require.NotNil(t, v)
		assert.Equal(t, int64(math.MaxInt32+1), v.Params["value"])
	})
}

func TestViolationParams(t *testing.T) {
	v := Check(Date, "2021-02-30")
	require.NotNil(t, v)
	assert.Equal(t, "date", v.Params["format"])
	assert.Equal(t, "2021-02-30", v.Params["value"])
	assert.Contains(t, v.Text, "date")
}
