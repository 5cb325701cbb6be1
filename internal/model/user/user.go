package user

import "time"

// User is a registered account. Email and phone are globally unique and the
// ID never changes after creation.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DateOfBirth string    `json:"dateOfBirth"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"createdAt"`
}
