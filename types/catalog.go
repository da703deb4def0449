package types

// Group is a named set of permissions that users can be members of.
type Group struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Permissions []int  `json:"permissions" db:"-"`
}

// Permission is a single grantable capability. Codename is unique per
// content type.
type Permission struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Codename    string `json:"codename" db:"codename"`
	ContentType string `json:"content_type" db:"content_type"`
}
