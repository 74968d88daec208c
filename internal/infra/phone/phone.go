// Package phone converts phone numbers between the locally stored lookup form
// (03001234567) and the international form providers expect (+923001234567).
package phone

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	defaultRegion      = "PK"
	defaultCountryCode = "92"
)

// Normalizer applies the region's calling code in both directions.
type Normalizer struct {
	region      string
	countryCode string
	trunkPrefix string
}

// New builds a normalizer for a CLDR region code such as "PK".
// Unknown regions fall back to Pakistan.
func New(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = defaultRegion
	}
	cc := defaultCountryCode
	if code := phonenumbers.GetCountryCodeForRegion(region); code > 0 {
		cc = strconv.Itoa(code)
	} else {
		region = defaultRegion
	}
	n := &Normalizer{region: region, countryCode: cc}
	if md := phonenumbers.GetMetadataForRegion(region); md != nil {
		n.trunkPrefix = md.GetNationalPrefix()
	}
	return n
}

// CountryCode returns the calling code without a plus sign.
func (n *Normalizer) CountryCode() string { return n.countryCode }

// ForSending strips non-digits, rewrites a leading 0 to the country code and prefixes "+".
// A trunk 0 written after the country code, as in "+92 (0) 300", is dropped.
// An empty or digit-less input yields "".
func (n *Normalizer) ForSending(raw string) string {
	d := Digits(raw)
	if d == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(d, "00"):
		d = n.stripTrunk(d[2:])
	case strings.HasPrefix(d, "0"):
		d = n.countryCode + d[1:]
	default:
		d = n.stripTrunk(d)
	}
	return "+" + d
}

// ForLookup is the inverse of ForSending: the country code (with or without "+") becomes a
// leading 0 so the result matches stored lead phones.
func (n *Normalizer) ForLookup(raw string) string {
	d := Digits(raw)
	if strings.HasPrefix(d, "00"+n.countryCode) {
		d = d[2:]
	}
	d = n.stripTrunk(d)
	if strings.HasPrefix(d, n.countryCode) && len(d) > len(n.countryCode)+6 {
		d = "0" + d[len(n.countryCode):]
	}
	return d
}

// stripTrunk drops the national trunk prefix from a number that already carries the country code.
func (n *Normalizer) stripTrunk(d string) string {
	if n.trunkPrefix == "" {
		return d
	}
	prefix := n.countryCode + n.trunkPrefix
	if strings.HasPrefix(d, prefix) && len(d) > len(prefix)+6 {
		return n.countryCode + d[len(prefix):]
	}
	return d
}

// IsValid reports whether the number parses as a valid number for the region.
func (n *Normalizer) IsValid(raw string) bool {
	num, err := phonenumbers.Parse(n.ForSending(raw), n.region)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// Digits drops every non-digit character.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
