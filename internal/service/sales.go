package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ponselkita/backend/internal/domain"
	"ponselkita/backend/internal/numbergen"
	"ponselkita/backend/internal/store"
)

// CreateSale runs the whole checkout: pricing, stock and IMEI checks, totals,
// and the optional first payment, committed atomically by the store.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (*domain.Sale, error) {
	actor, policy := s.policy(ctx)
	if !policy.CanSell() {
		return nil, fmt.Errorf("%w: sales require a cashier or manager account", ErrForbidden)
	}

	branchID := req.BranchID
	if branchID == 0 {
		branchID = policy.BranchID
	}
	if !policy.CanAccessBranch(branchID) {
		return nil, fmt.Errorf("%w: branch %d", ErrForbidden, branchID)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.Discount.Sign() < 0 || req.TaxRate.Sign() < 0 || req.Paid.Sign() < 0 {
		return nil, fmt.Errorf("%w: discount, tax_rate and paid cannot be negative", store.ErrInvalidInput)
	}

	branch, err := s.repo.GetBranchByID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if !branch.Active {
		return nil, fmt.Errorf("%w: branch %s is inactive", store.ErrInvalidInput, branch.Code)
	}
	if req.CustomerID != nil {
		if _, err := s.repo.GetCustomerByID(ctx, *req.CustomerID); err != nil {
			return nil, fmt.Errorf("%w: customer %d", store.ErrForeignKey, *req.CustomerID)
		}
	}

	now := time.Now().UTC()
	userID, err := s.effectiveUserID(ctx, actor)
	if err != nil {
		return nil, err
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, in := range req.Items {
		product, err := s.repo.GetProductByID(ctx, in.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", in.ProductID, err)
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidInput, product.SKU)
		}

		imei := strings.TrimSpace(in.IMEI)
		switch product.InventoryType {
		case domain.InventoryTypeUnique:
			if imei == "" {
				return nil, fmt.Errorf("%w: product %s requires an imei", store.ErrInvalidInput, product.SKU)
			}
			if in.Quantity != 1 {
				return nil, fmt.Errorf("%w: imei items sell one unit per line", store.ErrInvalidInput)
			}
		case domain.InventoryTypeQuantity:
			if imei != "" {
				return nil, fmt.Errorf("%w: product %s does not take an imei", store.ErrInvalidInput, product.SKU)
			}
		}

		unitPrice := in.UnitPrice
		if unitPrice.Sign() == 0 {
			unitPrice = product.RetailPrice
		}
		if unitPrice.Sign() <= 0 {
			return nil, fmt.Errorf("%w: unit price must be positive", store.ErrInvalidInput)
		}
		if in.Discount.Sign() < 0 {
			return nil, fmt.Errorf("%w: line discount cannot be negative", store.ErrInvalidInput)
		}

		lineSubtotal := unitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Sub(in.Discount)
		if lineSubtotal.Sign() < 0 {
			return nil, fmt.Errorf("%w: line discount exceeds line amount", store.ErrInvalidInput)
		}
		subtotal = subtotal.Add(lineSubtotal)

		items = append(items, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			IMEI:        imei,
			Quantity:    in.Quantity,
			UnitPrice:   unitPrice,
			Discount:    in.Discount,
			Subtotal:    lineSubtotal,
		})
	}

	if req.Discount.GreaterThan(subtotal) {
		return nil, fmt.Errorf("%w: discount exceeds subtotal", store.ErrInvalidInput)
	}

	taxable := subtotal.Sub(req.Discount)
	tax := round2(taxable.Mul(req.TaxRate).Div(decimal.NewFromInt(100)))
	total := taxable.Add(tax)

	// Over-tender (cash handed over above the total) is accepted; the sale is
	// simply classified paid with nothing left due.
	due := total.Sub(req.Paid)
	if due.Sign() < 0 {
		due = decimal.Zero
	}

	sale := domain.Sale{
		InvoiceNumber: numbergen.Invoice(branch.Code, now),
		BranchID:      branchID,
		CustomerID:    req.CustomerID,
		UserID:        userID,
		Subtotal:      subtotal,
		Discount:      req.Discount,
		TaxRate:       req.TaxRate,
		Tax:           tax,
		Total:         total,
		Paid:          req.Paid,
		Due:           due,
		PaymentStatus: domain.PaymentStatusFor(total, req.Paid),
		SaleStatus:    domain.SaleStatusCompleted,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		Items:         items,
	}

	var firstPayment *domain.Payment
	if req.Paid.Sign() > 0 {
		method := req.PaymentMethod
		if method == "" {
			method = "cash"
		}
		firstPayment = &domain.Payment{
			Amount:    req.Paid,
			Method:    method,
			CreatedBy: userID,
		}
	}

	created, err := s.repo.CreateSale(ctx, sale, firstPayment)
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx, branchID, now)
	s.logAudit(ctx, branchID, "sale_create", "sale", created.InvoiceNumber,
		fmt.Sprintf("total=%s paid=%s items=%d", created.Total, created.Paid, len(created.Items)))
	return created, nil
}

// GetSale accepts either a numeric sale id or an invoice number.
func (s *Service) GetSale(ctx context.Context, ref string) (*domain.Sale, error) {
	var sale *domain.Sale
	var err error
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		sale, err = s.repo.GetSaleByID(ctx, id)
	} else {
		sale, err = s.repo.GetSaleByInvoice(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	_, policy := s.policy(ctx)
	if !policy.CanAccessBranch(sale.BranchID) {
		return nil, fmt.Errorf("%w: branch %d", ErrForbidden, sale.BranchID)
	}
	return sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleListFilter) ([]domain.Sale, error) {
	_, policy := s.policy(ctx)
	if !policy.IsAdmin() {
		if filter.BranchID == 0 {
			filter.BranchID = policy.BranchID
		}
		if !policy.CanAccessBranch(filter.BranchID) {
			return nil, fmt.Errorf("%w: branch %d", ErrForbidden, filter.BranchID)
		}
	}
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) AddPayment(ctx context.Context, saleRef string, req domain.PaymentCreateRequest) (*domain.Sale, error) {
	actor, policy := s.policy(ctx)
	if !policy.CanSell() {
		return nil, fmt.Errorf("%w: payments require a cashier or manager account", ErrForbidden)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", store.ErrInvalidInput)
	}

	sale, err := s.GetSale(ctx, saleRef)
	if err != nil {
		return nil, err
	}

	userID, err := s.effectiveUserID(ctx, actor)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.AddPayment(ctx, sale.ID, domain.Payment{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: strings.TrimSpace(req.Reference),
		CreatedBy: userID,
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx, updated.BranchID, updated.CreatedAt)
	s.logAudit(ctx, updated.BranchID, "payment_add", "sale", updated.InvoiceNumber,
		fmt.Sprintf("amount=%s method=%s", req.Amount, req.Method))
	return updated, nil
}

func (s *Service) CancelSale(ctx context.Context, saleRef string, req domain.SaleCancelRequest) (*domain.Sale, error) {
	_, policy := s.policy(ctx)
	if !policy.CanProcessRefunds() {
		return nil, fmt.Errorf("%w: cancelling a sale requires admin or manager", ErrForbidden)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	sale, err := s.GetSale(ctx, saleRef)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.repo.CancelSale(ctx, sale.ID, strings.TrimSpace(req.Reason), time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx, cancelled.BranchID, cancelled.CreatedAt)
	s.logAudit(ctx, cancelled.BranchID, "sale_cancel", "sale", cancelled.InvoiceNumber, req.Reason)
	return cancelled, nil
}

// --- refunds ---

func (s *Service) CreateRefund(ctx context.Context, saleRef string, req domain.RefundCreateRequest) (*domain.Refund, error) {
	actor, policy := s.policy(ctx)
	if !policy.CanSell() && !policy.CanProcessRefunds() {
		return nil, fmt.Errorf("%w: refund requests require a staff account", ErrForbidden)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", store.ErrInvalidInput)
	}

	sale, err := s.GetSale(ctx, saleRef)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userID, err := s.effectiveUserID(ctx, actor)
	if err != nil {
		return nil, err
	}

	refund, err := s.repo.CreateRefund(ctx, domain.Refund{
		RefundNumber: numbergen.Refund(now),
		SaleID:       sale.ID,
		Amount:       req.Amount,
		Reason:       strings.TrimSpace(req.Reason),
		RequestedBy:  userID,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, sale.BranchID, "refund_request", "refund", refund.RefundNumber,
		fmt.Sprintf("sale=%s amount=%s", sale.InvoiceNumber, refund.Amount))
	return refund, nil
}

// ProcessRefund approves or rejects a pending refund. Refunds that were
// already processed surface as not found, which keeps the operation safe to
// retry without double-applying money movement.
func (s *Service) ProcessRefund(ctx context.Context, refundID int64, req domain.RefundProcessRequest) (*domain.Refund, error) {
	actor, policy := s.policy(ctx)
	if !policy.CanProcessRefunds() {
		return nil, fmt.Errorf("%w: processing refunds requires admin or manager", ErrForbidden)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	userID, err := s.effectiveUserID(ctx, actor)
	if err != nil {
		return nil, err
	}

	approve := req.Action == "approve"
	refund, err := s.repo.ProcessRefund(ctx, refundID, approve, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	sale, err := s.repo.GetSaleByID(ctx, refund.SaleID)
	if err == nil {
		s.invalidateSummary(ctx, sale.BranchID, sale.CreatedAt)
		s.logAudit(ctx, sale.BranchID, "refund_"+req.Action, "refund", refund.RefundNumber,
			fmt.Sprintf("sale=%s amount=%s", sale.InvoiceNumber, refund.Amount))
	}
	return refund, nil
}

func (s *Service) ListRefunds(ctx context.Context, saleID int64) ([]domain.Refund, error) {
	return s.repo.ListRefunds(ctx, saleID)
}
