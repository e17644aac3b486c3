package models

type Restaurant struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	SlugName string   `json:"slug_name"`
	Phone    string   `json:"phone"`
	Location Location `json:"location"`
	Cuisines []string `json:"cuisines"`
}
