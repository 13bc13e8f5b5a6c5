package qbsync

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type DocumentSyncPayload struct {
	DocumentId    int    `json:"document_id"`
	BusinessId    string `json:"business_id"`
	UserId        int    `json:"user_id"`
	TriggeredBy   string `json:"triggered_by"`
	CorrelationId string `json:"correlation_id"`
}

type ConnectRequest struct {
	RealmId      string `json:"realmId" binding:"required"`
	AccessToken  string `json:"accessToken" binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type UpdateSettingsRequest struct {
	ExpenseAccountRef string `json:"expenseAccountRef"`
	PaymentAccountRef string `json:"paymentAccountRef"`
	ItemRef           string `json:"itemRef"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	RealmId string `json:"realmId,omitempty"`
}

type DocumentResponse struct {
	ID           int      `json:"id"`
	DocumentType string   `json:"documentType"`
	Status       string   `json:"status"`
	FileUrl      string   `json:"fileUrl"`
	PageImages   []string `json:"pageImages"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	CreatedAt    string   `json:"createdAt"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID           uint    `json:"id"`
	DocumentId   int     `json:"documentId"`
	Status       string  `json:"status"`
	TriggeredBy  string  `json:"triggeredBy"`
	StartedAt    *string `json:"startedAt"`
	FinishedAt   *string `json:"finishedAt"`
	DurationMs   int64   `json:"durationMs"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID        uint   `json:"id"`
	Step      string `json:"step"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
