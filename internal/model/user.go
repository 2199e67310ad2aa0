package model

import "time"

// User represents an application user record as stored in the `users`
// table. Password holds the bcrypt hash, never the plaintext.
type User struct {
	ID        string     // users.id (uuid)
	FullName  string     // users.full_name
	Username  string     // users.username (unique)
	Password  string     // users.password (bcrypt hash)
	CreatedAt time.Time  // users.created_at
	UpdatedAt *time.Time // users.updated_at (nullable)
}
