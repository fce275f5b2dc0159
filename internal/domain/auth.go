package domain

// Role is the application role carried in the caller's access token.
type Role string

const (
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
)

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID string
	Role   Role
}
