package event

// NotificationEventPushModel matches the push payload consumed by the notification service.
type NotificationEventPushModel struct {
	LstUserIds []string       `json:"lstUserIds,omitempty"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Data       map[string]any `json:"data,omitempty"`
}

const (
	PushNotiQueue        string = "push_noti_events"
	PaymentCallbackQueue string = "claim_payment_callbacks"
)

// PaymentCallback is the asynchronous result a payout gateway posts for a payment.
type PaymentCallback struct {
	PaymentID     int64  `json:"paymentId"`
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
}
