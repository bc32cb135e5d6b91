package dto

import "time"

// RedeemRequest consumes a one-time activation token.
type RedeemRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// ReissueRequest asks for a replacement token.
type ReissueRequest struct {
	Email string `json:"email"`
}

// SetPasswordRequest completes onboarding after activation.
type SetPasswordRequest struct {
	Password string `json:"password"`
}

// CredentialResponse reports an issued token's expiry. The token itself
// travels by email only, except on the direct issue endpoint.
type CredentialResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token,omitempty"`
}
