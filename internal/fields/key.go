package fields

import "strings"

// HashLen is the length of a custom field key.
const HashLen = 40

// Field types whose v2 value is an object rather than a scalar.
const (
	TypeMonetary  = "monetary"
	TypeTime      = "time"
	TypeTimeRange = "timerange"
	TypeDateRange = "daterange"
	TypeAddress   = "address"
	TypeEnum      = "enum"
	TypeSet       = "set"
	TypeDate      = "date"
)

// companions maps a key suffix to the v2 sub-property and the field type it
// implies.
var companions = []struct {
	suffix string
	prop   string
	typ    string
}{
	{"_currency", "currency", TypeMonetary},
	{"_timezone_id", "timezone_id", TypeTime},
	{"_until", "until", TypeDateRange},
	{"_subpremise", "subpremise", TypeAddress},
	{"_street_number", "street_number", TypeAddress},
	{"_route", "route", TypeAddress},
	{"_sublocality", "sublocality", TypeAddress},
	{"_locality", "locality", TypeAddress},
	{"_admin_area_level_1", "admin_area_level_1", TypeAddress},
	{"_admin_area_level_2", "admin_area_level_2", TypeAddress},
	{"_country", "country", TypeAddress},
	{"_postal_code", "postal_code", TypeAddress},
	{"_formatted_address", "formatted_address", TypeAddress},
}

// IsHash reports whether key is a custom field key: 40 lowercase hex chars.
func IsHash(key string) bool {
	if len(key) != HashLen {
		return false
	}

	for i := range len(key) {
		c := key[i]
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}

	return true
}

// SplitCompanion splits "<hash>_currency" into the hash and its v2
// sub-property name ("currency"). ok is false for any other key.
func SplitCompanion(key string) (hash, prop string, ok bool) {
	if len(key) <= HashLen || key[HashLen] != '_' || !IsHash(key[:HashLen]) {
		return "", "", false
	}

	suffix := key[HashLen:]
	for _, c := range companions {
		if suffix == c.suffix {
			return key[:HashLen], c.prop, true
		}
	}

	return "", "", false
}

// CompanionType returns the field type implied by a companion sub-property.
func CompanionType(prop string) string {
	for _, c := range companions {
		if c.prop == prop {
			return c.typ
		}
	}

	return ""
}

// IsStructuredType reports whether v2 represents a field of this type as an
// object with a "value" property.
func IsStructuredType(typ string) bool {
	switch strings.ToLower(typ) {
	case TypeMonetary, TypeTime, TypeTimeRange, TypeDateRange, TypeAddress:
		return true
	default:
		return false
	}
}
