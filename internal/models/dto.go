package models

// CreateOrderRequest — тело POST /api/orders.
type CreateOrderRequest struct {
	Items           []LineItem `json:"items"`
	Currency        string     `json:"currency"`
	PaymentMethod   string     `json:"payment_method"`
	ShippingAddress Address    `json:"shipping_address"`
}

// TransitionRequest — тело POST /api/orders/:id/status.
type TransitionRequest struct {
	Status            string `json:"status"`
	TrackingNumber    string `json:"tracking_number"`
	CourierName       string `json:"courier_name"`
	EstimatedDelivery string `json:"estimated_delivery"`
}

// SubmitRequestBody — тело POST /api/orders/:id/requests.
// Для возврата и замены reason — код категории, description — подпричина или свободный текст.
type SubmitRequestBody struct {
	Kind        string   `json:"kind"`
	ReturnType  string   `json:"return_type"`
	Reason      string   `json:"reason"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
}

// DecisionBody — решение администратора.
type DecisionBody struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

// RestorationBody — тело запроса на восстановление.
type RestorationBody struct {
	Reason string `json:"reason"`
}

// RefundBody — фиксация завершённого возврата средств.
type RefundBody struct {
	Amount        *float64 `json:"amount"`
	TransactionID string   `json:"transaction_id"`
}

// LineItemResponse — позиция заказа с данными каталога.
type LineItemResponse struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// TrackingResponse — данные отслеживания.
type TrackingResponse struct {
	CourierName       string `json:"courier_name"`
	TrackingNumber    string `json:"tracking_number"`
	EstimatedDelivery string `json:"estimated_delivery,omitempty"`
}

// DeletionResponse — сведения об удалении.
type DeletionResponse struct {
	DeletedAt         string `json:"deleted_at"`
	DeletionExpiresAt string `json:"deletion_expires_at"`
	StatusBefore      string `json:"status_before_deletion"`
}

// RestorationResponse — сведения о восстановлении.
type RestorationResponse struct {
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	RequestedAt     string `json:"requested_at,omitempty"`
	DecidedAt       string `json:"decided_at,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// OrderResponse — заказ в ответе API.
type OrderResponse struct {
	ID            int64                `json:"id"`
	UserID        string               `json:"user_id"`
	Status        string               `json:"status"`
	TotalAmount   float64              `json:"total_amount"`
	Currency      string               `json:"currency"`
	PaymentMethod string               `json:"payment_method"`
	Items         []LineItemResponse   `json:"items"`
	Address       *Address             `json:"shipping_address,omitempty"`
	Timestamps    map[string]string    `json:"timestamps"`
	Tracking      *TrackingResponse    `json:"tracking,omitempty"`
	RefundStatus  string               `json:"refund_status"`
	RefundAmount  *float64             `json:"refund_amount,omitempty"`
	Deletion      *DeletionResponse    `json:"deletion,omitempty"`
	Restoration   *RestorationResponse `json:"restoration,omitempty"`
	CreatedAt     string               `json:"created_at"`
}

// RequestResponse — запрос в ответе API.
type RequestResponse struct {
	ID          int64    `json:"id"`
	OrderID     int64    `json:"order_id"`
	Kind        string   `json:"kind"`
	RequesterID string   `json:"requester_id"`
	Reason      string   `json:"reason"`
	Description string   `json:"description,omitempty"`
	Evidence    []string `json:"evidence,omitempty"`
	Status      string   `json:"status"`
	AdminNote   string   `json:"admin_note,omitempty"`
	DecidedAt   string   `json:"decided_at,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

// EligibilityResponse — доступность возврата/замены.
type EligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Deadline string `json:"deadline,omitempty"`
}

// ReasonsResponse — справочник причин для клиентов.
type ReasonsResponse struct {
	Cancellation []string         `json:"cancellation"`
	Return       []ReturnCategory `json:"return"`
	DetailAccess []string         `json:"detail_access"`
}
