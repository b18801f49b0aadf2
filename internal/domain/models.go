package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
	RoleSystem  = "system"
)

// SystemUsername is the seeded service account used as the acting user when a
// request reaches the service layer without an authenticated user attached.
const SystemUsername = "system"

const (
	InventoryTypeQuantity = "quantity"
	InventoryTypeUnique   = "unique"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPartial = "partial"
	PaymentStatusDue     = "due"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
	SaleStatusRefunded  = "refunded"
)

const (
	RefundStatusPending   = "pending"
	RefundStatusCompleted = "completed"
	RefundStatusRejected  = "rejected"
)

const (
	TransferStatusPending   = "pending"
	TransferStatusCompleted = "completed"
	TransferStatusCancelled = "cancelled"
)

const (
	IMEIStatusAvailable   = "available"
	IMEIStatusReserved    = "reserved"
	IMEIStatusSold        = "sold"
	IMEIStatusReturned    = "returned"
	IMEIStatusTransferred = "transferred"
)

// PaymentStatusFor classifies a sale's payment state from its total and the
// amount paid so far. Overpayment still classifies as paid.
func PaymentStatusFor(total, paid decimal.Decimal) string {
	due := total.Sub(paid)
	switch {
	case due.Sign() <= 0:
		return PaymentStatusPaid
	case paid.Sign() > 0:
		return PaymentStatusPartial
	default:
		return PaymentStatusDue
	}
}

type Actor struct {
	UserID   int64
	Username string
	Role     string
	BranchID int64
}

type Branch struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID             int64           `json:"id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Brand          string          `json:"brand,omitempty"`
	Category       string          `json:"category,omitempty"`
	InventoryType  string          `json:"inventory_type"`
	BasePrice      decimal.Decimal `json:"base_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

type BranchStock struct {
	BranchID         int64     `json:"branch_id"`
	ProductID        int64     `json:"product_id"`
	ProductSKU       string    `json:"product_sku,omitempty"`
	ProductName      string    `json:"product_name,omitempty"`
	Quantity         int       `json:"quantity"`
	ReservedQuantity int       `json:"reserved_quantity"`
	MinStockLevel    int       `json:"min_stock_level"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Available is the sellable quantity: on-hand minus units held for transfers.
func (s BranchStock) Available() int {
	return s.Quantity - s.ReservedQuantity
}

type IMEIRecord struct {
	ID        int64     `json:"id"`
	IMEI      string    `json:"imei"`
	ProductID int64     `json:"product_id"`
	BranchID  int64     `json:"branch_id"`
	Status    string    `json:"status"`
	SaleID    *int64    `json:"sale_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SaleItem struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	IMEI        string          `json:"imei,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Payment struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

type Sale struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	BranchID      int64           `json:"branch_id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	UserID        int64           `json:"user_id"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Paid          decimal.Decimal `json:"paid"`
	Due           decimal.Decimal `json:"due"`
	PaymentStatus string          `json:"payment_status"`
	SaleStatus    string          `json:"sale_status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []SaleItem      `json:"items,omitempty"`
	Payments      []Payment       `json:"payments,omitempty"`
}

type Refund struct {
	ID           int64           `json:"id"`
	RefundNumber string          `json:"refund_number"`
	SaleID       int64           `json:"sale_id"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	Status       string          `json:"status"`
	RequestedBy  int64           `json:"requested_by"`
	ProcessedBy  *int64          `json:"processed_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
}

type StockTransfer struct {
	ID             int64      `json:"id"`
	TransferNumber string     `json:"transfer_number"`
	FromBranchID   int64      `json:"from_branch_id"`
	ToBranchID     int64      `json:"to_branch_id"`
	ProductID      int64      `json:"product_id"`
	Quantity       int        `json:"quantity"`
	IMEI           string     `json:"imei,omitempty"`
	Status         string     `json:"status"`
	RequestedBy    int64      `json:"requested_by"`
	ProcessedBy    *int64     `json:"processed_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

type UserAccount struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	BranchID  int64     `json:"branch_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID         int64     `json:"id"`
	BranchID   int64     `json:"branch_id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type SalesSummary struct {
	BranchID      int64           `json:"branch_id"`
	Date          string          `json:"date"`
	SaleCount     int             `json:"sale_count"`
	GrossTotal    decimal.Decimal `json:"gross_total"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalDue      decimal.Decimal `json:"total_due"`
	RefundedCount int             `json:"refunded_count"`
	TotalRefunded decimal.Decimal `json:"total_refunded"`
}

// SaleListFilter narrows sale listings. StartDate is an inclusive lower bound
// and EndDate an exclusive upper bound on created_at; zero times mean no bound.
type SaleListFilter struct {
	BranchID      int64
	CustomerID    int64
	Status        string
	PaymentStatus string
	StartDate     time.Time
	EndDate       time.Time
	Limit         int
	Offset        int
}

// --- request payloads ---

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	BranchID    int64  `json:"branch_id"`
	ExpiresAt   string `json:"expires_at"`
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=4"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name"`
	Role     string `json:"role" validate:"required,oneof=manager cashier"`
	BranchID int64  `json:"branch_id" validate:"required,gt=0"`
}

type BranchCreateRequest struct {
	Code    string `json:"code" validate:"required,min=2,max=8"`
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type ProductCreateRequest struct {
	SKU            string          `json:"sku" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	Brand          string          `json:"brand"`
	Category       string          `json:"category"`
	InventoryType  string          `json:"inventory_type" validate:"required,oneof=quantity unique"`
	BasePrice      decimal.Decimal `json:"base_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
}

type ProductUpdateRequest struct {
	Name           *string          `json:"name,omitempty"`
	Brand          *string          `json:"brand,omitempty"`
	Category       *string          `json:"category,omitempty"`
	BasePrice      *decimal.Decimal `json:"base_price,omitempty"`
	WholesalePrice *decimal.Decimal `json:"wholesale_price,omitempty"`
	RetailPrice    *decimal.Decimal `json:"retail_price,omitempty"`
	Active         *bool            `json:"active,omitempty"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

type SaleItemInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	IMEI      string          `json:"imei,omitempty"`
}

type SaleCreateRequest struct {
	BranchID      int64           `json:"branch_id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Items         []SaleItemInput `json:"items" validate:"required,min=1,dive"`
	Discount      decimal.Decimal `json:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Paid          decimal.Decimal `json:"paid"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

type PaymentCreateRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required"`
	Reference string          `json:"reference,omitempty"`
}

type SaleCancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type RefundCreateRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required"`
}

type RefundProcessRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

type StockReceiveRequest struct {
	BranchID      int64 `json:"branch_id"`
	ProductID     int64 `json:"product_id" validate:"required,gt=0"`
	Quantity      int   `json:"quantity" validate:"required,gt=0"`
	MinStockLevel *int  `json:"min_stock_level,omitempty"`
}

type IMEIRegisterRequest struct {
	BranchID  int64  `json:"branch_id"`
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	IMEI      string `json:"imei" validate:"required,len=15,numeric"`
}

type TransferCreateRequest struct {
	FromBranchID int64  `json:"from_branch_id" validate:"required,gt=0"`
	ToBranchID   int64  `json:"to_branch_id" validate:"required,gt=0"`
	ProductID    int64  `json:"product_id" validate:"required,gt=0"`
	Quantity     int    `json:"quantity"`
	IMEI         string `json:"imei,omitempty"`
}
