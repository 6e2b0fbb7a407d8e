package transfer

type InstagramTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type InstagramContainerResponse struct {
	ID    string          `json:"id"`
	Error *InstagramError `json:"error,omitempty"`
}

type InstagramContainerStatus struct {
	ID         string          `json:"id"`
	StatusCode string          `json:"status_code"`
	Error      *InstagramError `json:"error,omitempty"`
}

type InstagramPublishResponse struct {
	ID    string          `json:"id"`
	Error *InstagramError `json:"error,omitempty"`
}

type InstagramMediaInfo struct {
	ID        string          `json:"id"`
	Permalink string          `json:"permalink"`
	Error     *InstagramError `json:"error,omitempty"`
}

type InstagramError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}
