package transfer

type BlueskySession struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type BlueskyBlob struct {
	Type     string `json:"$type"`
	Ref      any    `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

type BlueskyUploadBlobResponse struct {
	Blob    BlueskyBlob `json:"blob"`
	Error   string      `json:"error"`
	Message string      `json:"message"`
}

type BlueskyCreateRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Record     any    `json:"record"`
}

type BlueskyCreateRecordResponse struct {
	URI     string `json:"uri"`
	CID     string `json:"cid"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
