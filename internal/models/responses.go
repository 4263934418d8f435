package models

// SuccessResponse is the envelope of operations without a payload
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the envelope of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionResponse is returned by operations that issue a session
type SessionResponse struct {
	Success bool   `json:"success"`
	User    *User  `json:"user"`
	Token   string `json:"token"`
}

// UserResponse wraps a single user
type UserResponse struct {
	Success bool  `json:"success"`
	User    *User `json:"user"`
}

// UserListResponse wraps a page of users
type UserListResponse struct {
	Success    bool   `json:"success"`
	Users      []User `json:"users"`
	UsersCount int    `json:"usersCount"`
	Page       int    `json:"page"`
	Count      int    `json:"count"`
}

// ReconcileResponse reports an orphaned avatar reconciliation run
type ReconcileResponse struct {
	Success   bool `json:"success"`
	Scanned   int  `json:"scanned"`
	Destroyed int  `json:"destroyed"`
}
