package domain

// Pagination captures list pagination input.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Address captures a postal address snapshot.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Contact stores the customer contact snapshot taken at checkout.
type Contact struct {
	Name    string
	Email   string
	Phone   string
	Address Address
}
