package models

// Actor identifies who performs a mutation. The identity is resolved upstream
// from an access token; the registry only records it and enforces ownership.
type Actor struct {
	ClientID string  `json:"client_id"`
	UserID   *string `json:"user_id,omitempty"`
}

// SameUser reports whether userID refers to the actor's user. Two null users match.
func (a Actor) SameUser(userID *string) bool {
	if a.UserID == nil || userID == nil {
		return a.UserID == nil && userID == nil
	}
	return *a.UserID == *userID
}

// User is a registered user. Only the display name is needed by the registry.
type User struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
