package delivery

// DataCategory classifies the payload of an envelope.
type DataCategory int

const (
	CategoryAll DataCategory = iota
	CategoryDefault
	CategoryError
	CategorySession
	CategoryAttachment
	CategoryMonitor
	CategoryProfile
	CategoryTransaction
	CategoryReplay
	CategorySecurity
	CategoryUserReport
	CategoryUnknown
)

var categoryNames = [...]string{
	CategoryAll:         "__all__",
	CategoryDefault:     "default",
	CategoryError:       "error",
	CategorySession:     "session",
	CategoryAttachment:  "attachment",
	CategoryMonitor:     "monitor",
	CategoryProfile:     "profile",
	CategoryTransaction: "transaction",
	CategoryReplay:      "replay",
	CategorySecurity:    "security",
	CategoryUserReport:  "user_report",
	CategoryUnknown:     "unknown",
}

func (c DataCategory) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return categoryNames[CategoryUnknown]
	}
	return categoryNames[c]
}

// ParseCategory maps a wire name back to its category; unrecognised names
// are CategoryUnknown.
func ParseCategory(s string) DataCategory {
	for i, name := range categoryNames {
		if name == s {
			return DataCategory(i)
		}
	}
	return CategoryUnknown
}

func (c DataCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *DataCategory) UnmarshalText(b []byte) error {
	*c = ParseCategory(string(b))
	return nil
}
