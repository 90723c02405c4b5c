package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// Attachment is inline content sent with an assistant message. Entries with
// an image MIME type are forwarded to the engine ahead of the text.
type Attachment struct {
	MimeType   string `json:"mime_type"`
	DataBase64 string `json:"data_base64,omitempty"`
	URL        string `json:"url,omitempty"`
}

// AssistantRequest is the chat payload.
type AssistantRequest struct {
	Message        string       `json:"message"`
	Mode           string       `json:"mode,omitempty"`    // default | onboarding
	Context        string       `json:"context,omitempty"` // skills | wishes
	ConversationID string       `json:"conversation_id,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Stream         bool         `json:"stream,omitempty"`
	RefineWish     string       `json:"refine_wish,omitempty"`
}
