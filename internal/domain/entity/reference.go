package entity

// CompanyProfile is the issuing legal entity of an invoice (read-only here)
type CompanyProfile struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Entity is the billed party (read-only here)
type Entity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}
