package models

// Profile is the authenticated user's account as returned by the profile
// endpoint.
type Profile struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MessageResponse is the body of register and delete-account responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body the API sends with non-2xx statuses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
