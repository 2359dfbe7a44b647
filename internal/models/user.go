package models

import "time"

// User is an account in the credential store. The risk subsystem never sees
// plaintext passwords or hashes; only the login service touches PasswordHash.
type User struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
