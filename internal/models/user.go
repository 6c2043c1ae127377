package models

import (
	"fmt"
	"time"
)

// User represents a row in the users table.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) String() string {
	return fmt.Sprintf("User{id=%d, username='%s', email='%s', createdAt=%s}",
		u.ID, u.Username, u.Email, u.CreatedAt.Format(time.RFC3339))
}

// SaveRequest is the JSON body for POST /api/users. A non-zero ID updates
// the existing record.
type SaveRequest struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// User converts the request into the record handed to the store.
func (r SaveRequest) User() *User {
	return &User{ID: r.ID, Username: r.Username, Email: r.Email}
}
