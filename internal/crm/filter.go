package crm

import (
	"strings"

	"github.com/veriops/contactsync/internal/phone"
)

// Filter is a people filter expression, e.g. `emails.primaryEmail[eq]:"a@x.com"`.
type Filter string

// Eq matches field equal to value. A blank value yields an empty filter.
func Eq(field, value string) Filter {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	return Filter(field + `[eq]:"` + escaped + `"`)
}

// And combines the non-empty filters; a single filter is returned unchanged.
func And(filters ...Filter) Filter {
	return combine("and", filters)
}

// Or combines the non-empty filters; a single filter is returned unchanged.
func Or(filters ...Filter) Filter {
	return combine("or", filters)
}

// IdentityFilter matches people by primary email or by primary phone (national number
// and calling code). Absent identity fields do not participate.
func IdentityFilter(email string, pc phone.Components) Filter {
	var byPhone Filter
	if pc.NationalNumber != "" {
		byPhone = And(
			Eq("phones.primaryPhoneNumber", pc.NationalNumber),
			Eq("phones.primaryPhoneCallingCode", pc.CallingCode),
		)
	}
	return Or(Eq("emails.primaryEmail", strings.ToLower(email)), byPhone)
}

func combine(op string, filters []Filter) Filter {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if f != "" {
			parts = append(parts, string(f))
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return Filter(parts[0])
	default:
		return Filter(op + "(" + strings.Join(parts, ",") + ")")
	}
}
