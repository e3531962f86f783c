package consts

// SortOrder defines the ordering of pins when listed by creation time
type SortOrder bool

const (
	Ascending  = SortOrder(false)
	Descending = SortOrder(true)
)

func (o SortOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// SortOrderFrom parses "asc"/"desc", anything else yields Ascending
func SortOrderFrom(s string) SortOrder {
	if s == "desc" {
		return Descending
	}
	return Ascending
}
