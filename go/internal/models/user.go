package models

// User is a member of the session
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Actor returns the identity the user acts as
func (u User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}
