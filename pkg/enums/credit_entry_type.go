package enums

import "fmt"

// CreditEntryType maps to the credit_entry_type_enum enum in Postgres.
type CreditEntryType string

const (
	CreditEntryTypeReserve  CreditEntryType = "reserve"
	CreditEntryTypeGrant    CreditEntryType = "grant"
	CreditEntryTypePurchase CreditEntryType = "purchase"
)

var validCreditEntryTypes = []CreditEntryType{
	CreditEntryTypeReserve,
	CreditEntryTypeGrant,
	CreditEntryTypePurchase,
}

// IsValid reports whether the value matches the canonical credit entry enum.
func (t CreditEntryType) IsValid() bool {
	for _, candidate := range validCreditEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCreditEntryType converts raw input into CreditEntryType.
func ParseCreditEntryType(value string) (CreditEntryType, error) {
	for _, candidate := range validCreditEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit entry type %q", value)
}
