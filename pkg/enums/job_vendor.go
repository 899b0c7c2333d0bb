package enums

import "fmt"

// JobVendor names the upstream generation provider that owns a job.
type JobVendor string

const (
	JobVendorA2E       JobVendor = "a2e"
	JobVendorFAL       JobVendor = "fal"
	JobVendorReplicate JobVendor = "replicate"
	JobVendorOpenAI    JobVendor = "openai"
)

var validJobVendors = []JobVendor{
	JobVendorA2E,
	JobVendorFAL,
	JobVendorReplicate,
	JobVendorOpenAI,
}

// IsValid reports whether the value matches a known vendor.
func (v JobVendor) IsValid() bool {
	for _, candidate := range validJobVendors {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseJobVendor converts raw input into JobVendor.
func ParseJobVendor(value string) (JobVendor, error) {
	for _, candidate := range validJobVendors {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job vendor %q", value)
}
