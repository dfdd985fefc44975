// Package phone splits raw phone strings into calling code, national number and country.
package phone

import "strings"

// Components is the parsed form of a raw phone string. Empty fields did not resolve.
type Components struct {
	CallingCode    string `json:"calling_code,omitempty" yaml:"calling_code"`
	NationalNumber string `json:"national_number,omitempty" yaml:"national_number"`
	Country        string `json:"country,omitempty" yaml:"country"`
}

// IsZero reports whether nothing resolved.
func (c Components) IsZero() bool {
	return c.CallingCode == "" && c.NationalNumber == "" && c.Country == ""
}

// E164 returns "+<code><national>" when both parts resolved, otherwise the national number.
func (c Components) E164() string {
	if c.CallingCode == "" {
		return c.NationalNumber
	}
	if c.NationalNumber == "" {
		return ""
	}
	return c.CallingCode + c.NationalNumber
}

// Normalize parses raw. Input without a leading '+' is treated as a national number.
// Calling codes are matched longest-first against the table; an unknown prefix is
// still accepted as a calling code (with no country) when digits remain after it.
func Normalize(raw string) Components {
	cleaned := clean(raw)
	if cleaned == "" {
		return Components{}
	}
	if !strings.HasPrefix(cleaned, "+") {
		return Components{NationalNumber: cleaned}
	}
	digits := cleaned[1:]
	if digits == "" {
		return Components{}
	}

	for n := 3; n >= 1; n-- {
		if len(digits) <= n {
			continue
		}
		if country, ok := callingCodes[digits[:n]]; ok {
			return Components{
				CallingCode:    "+" + digits[:n],
				NationalNumber: digits[n:],
				Country:        country,
			}
		}
	}
	for n := 3; n >= 1; n-- {
		if len(digits) > n {
			return Components{
				CallingCode:    "+" + digits[:n],
				NationalNumber: digits[n:],
			}
		}
	}
	return Components{}
}

// clean keeps digits and a single leading '+'.
func clean(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(trimmed))
	if trimmed[0] == '+' {
		b.WriteByte('+')
	}
	for i := 0; i < len(trimmed); i++ {
		if c := trimmed[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
