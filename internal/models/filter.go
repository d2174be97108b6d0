package models

// Filter is one moderator filter dropdown: a report field and the distinct values stored for it.
type Filter struct {
	FilterName    FilterField `json:"filter_name"`
	FilterOptions []string    `json:"filter_options"`
}
