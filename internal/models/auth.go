package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the staff roles of the school.
type UserRole string

const (
	RoleAdmin          UserRole = "ADMIN"
	RoleHeadTeacher    UserRole = "HEAD_TEACHER"
	RoleFormMaster     UserRole = "FORM_MASTER"
	RoleClassTeacher   UserRole = "CLASS_TEACHER"
	RoleSubjectTeacher UserRole = "SUBJECT_TEACHER"
)

// JWTClaims represents the JWT payload for access tokens issued by the school portal.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor identifies who performs an operation. Anonymous actors have an empty UserID.
type Actor struct {
	UserID    string
	Role      UserRole
	IPAddress string
	UserAgent string
}

// Ref returns a pointer to the user id, or nil for anonymous actors.
func (a Actor) Ref() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}
