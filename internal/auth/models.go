package auth

import "time"

// User is a registered account. PasswordHash holds a bcrypt hash; accounts
// created before hashing was introduced still carry the plaintext value and
// are verified by Hasher.Compare.
type User struct {
	ID           string    `json:"id" bson:"_id" db:"id"`
	Username     string    `json:"username" bson:"username" db:"username"`
	Mobile       string    `json:"mobile" bson:"mobile" db:"mobile"`
	PasswordHash string    `json:"-" bson:"password" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
}

// Profile is the public view of a user returned by register and login.
type Profile struct {
	Username string `json:"username"`
	Mobile   string `json:"mobile"`
}

func (u User) Profile() Profile {
	return Profile{Username: u.Username, Mobile: u.Mobile}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
