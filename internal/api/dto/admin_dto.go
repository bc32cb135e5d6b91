package dto

// CreateAdminRequest provisions an email straight into the admin tier.
type CreateAdminRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AssignRoleRequest transitions an account to a new role.
type AssignRoleRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

// DeleteGrantRequest removes an admin grant.
type DeleteGrantRequest struct {
	Reason string `json:"reason"`
}

// IssueTokenRequest stores a fresh activation token on a grant.
type IssueTokenRequest struct {
	Role string `json:"role"`
}
