package domain

// User is the current authenticated identity as reported by the external
// provider. A nil *User means no session.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}
