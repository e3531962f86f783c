package cursor

// Link points to a neighbouring page, Href is the encoded cursor
type Link struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

// Page is one page of a listing
type Page[T any] struct {
	Data  []T    `json:"data"`
	Links []Link `json:"links,omitempty"`
}

// PageFor links the previous page unless c is on the first page, and the
// next page when hasMore is set
func PageFor[T any](data []T, c Cursor, hasMore bool) Page[T] {
	if data == nil {
		data = []T{}
	}
	page := Page[T]{Data: data}
	if prev, ok := c.Previous(); ok {
		page.Links = append(page.Links, Link{Name: "previous", Href: prev.Encode()})
	}
	if next, ok := c.Next(); ok && hasMore {
		page.Links = append(page.Links, Link{Name: "next", Href: next.Encode()})
	}
	return page
}
