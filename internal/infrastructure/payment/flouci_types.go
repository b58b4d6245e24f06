package payment

type flouciGenerateRequest struct {
	AppToken            string `json:"app_token"`
	AppSecret           string `json:"app_secret"`
	Amount              string `json:"amount"`
	AcceptCard          string `json:"accept_card"`
	SessionTimeoutSecs  int    `json:"session_timeout_secs"`
	SuccessLink         string `json:"success_link"`
	FailLink            string `json:"fail_link"`
	DeveloperTrackingID string `json:"developer_tracking_id"`
}

type flouciGenerateResponse struct {
	Result struct {
		Success   bool   `json:"success"`
		Link      string `json:"link"`
		PaymentID string `json:"payment_id"`
	} `json:"result"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type flouciVerifyResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Status              string `json:"status"`
		Amount              int64  `json:"amount"`
		DeveloperTrackingID string `json:"developer_tracking_id"`
	} `json:"result"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type flouciErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}
