package store

import (
	"context"
	"errors"
	"time"

	"ponselkita/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrIMEIUnavailable   = errors.New("imei unavailable")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrForeignKey        = errors.New("related record missing")
	ErrUnavailable       = errors.New("storage unavailable")
)

type Repository interface {
	ListBranches(ctx context.Context) ([]domain.Branch, error)
	GetBranchByID(ctx context.Context, id int64) (*domain.Branch, error)
	CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)

	ListProducts(ctx context.Context, query string, limit int) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	ListCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error)
	GetCustomerByID(ctx context.Context, id int64) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	ListBranchStock(ctx context.Context, branchID int64) ([]domain.BranchStock, error)
	ListLowStock(ctx context.Context, branchID int64) ([]domain.BranchStock, error)
	GetBranchStock(ctx context.Context, branchID int64, productID int64) (*domain.BranchStock, error)
	ReceiveStock(ctx context.Context, branchID int64, productID int64, qty int, minStockLevel *int) (*domain.BranchStock, error)

	RegisterIMEI(ctx context.Context, rec domain.IMEIRecord) (*domain.IMEIRecord, error)
	GetIMEI(ctx context.Context, imei string) (*domain.IMEIRecord, error)
	ListIMEIs(ctx context.Context, branchID int64, productID int64, status string, limit int) ([]domain.IMEIRecord, error)

	CreateSale(ctx context.Context, sale domain.Sale, payment *domain.Payment) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id int64) (*domain.Sale, error)
	GetSaleByInvoice(ctx context.Context, invoiceNumber string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleListFilter) ([]domain.Sale, error)
	AddPayment(ctx context.Context, saleID int64, payment domain.Payment) (*domain.Sale, error)
	CancelSale(ctx context.Context, saleID int64, reason string, at time.Time) (*domain.Sale, error)

	CreateRefund(ctx context.Context, refund domain.Refund) (*domain.Refund, error)
	ProcessRefund(ctx context.Context, refundID int64, approve bool, processedBy int64, at time.Time) (*domain.Refund, error)
	ListRefunds(ctx context.Context, saleID int64) ([]domain.Refund, error)

	CreateTransfer(ctx context.Context, transfer domain.StockTransfer) (*domain.StockTransfer, error)
	CompleteTransfer(ctx context.Context, id int64, processedBy int64, at time.Time) (*domain.StockTransfer, error)
	CancelTransfer(ctx context.Context, id int64, processedBy int64, at time.Time) (*domain.StockTransfer, error)
	ListTransfers(ctx context.Context, branchID int64, status string, limit int) ([]domain.StockTransfer, error)

	GetSalesSummary(ctx context.Context, branchID int64, from time.Time, to time.Time) (domain.SalesSummary, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID int64, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
