package userapi

import "time"

// UserType is the role of a user.
type UserType string

// User types.
const (
	UserTypeAdmin UserType = "ADMIN"
	UserTypeUser  UserType = "USER"
)

// UUID is a user identifier.
//
//apimda:format uuid
type UUID string

// User is a stored user.
type User struct {
	ID   UUID    `json:"id"`
	Name *string `json:"name,omitempty"`
	//apimda:format email
	Email     string    `json:"email"`
	UserType  UserType  `json:"userType"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserPost holds the fields of a new user.
type UserPost struct {
	Name *string `json:"name,omitempty"`
	//apimda:format email
	Email    string   `json:"email"`
	UserType UserType `json:"userType"`
}

// UserPut replaces every writable field of a user.
type UserPut struct {
	Name *string `json:"name,omitempty"`
	//apimda:format email
	Email    string   `json:"email"`
	UserType UserType `json:"userType"`
}

// UserPatch changes the fields it sets.
type UserPatch struct {
	Name *string `json:"name,omitempty"`
	//apimda:format email
	Email    *string   `json:"email,omitempty"`
	UserType *UserType `json:"userType,omitempty"`
}
