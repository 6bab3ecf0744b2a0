package domain

import "time"

// RoleGrant records an elevated role for a user, independently of the
// identity record itself. PK: user_id — re-granting the same role is an
// idempotent upsert.
type RoleGrant struct {
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Role      string    `json:"role" dynamodbav:"role"`
	GrantedBy string    `json:"granted_by,omitempty" dynamodbav:"granted_by"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}
