package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ponselkita/backend/internal/domain"
	"ponselkita/backend/internal/numbergen"
	"ponselkita/backend/internal/store"
)

func (s *Service) ListStock(ctx context.Context, branchID int64) ([]domain.BranchStock, error) {
	branchID, err := s.resolveBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBranchStock(ctx, branchID)
}

// ListLowStock returns rows at or below their minimum stock level, the feed
// for reorder decisions.
func (s *Service) ListLowStock(ctx context.Context, branchID int64) ([]domain.BranchStock, error) {
	branchID, err := s.resolveBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLowStock(ctx, branchID)
}

func (s *Service) ReceiveStock(ctx context.Context, req domain.StockReceiveRequest) (*domain.BranchStock, error) {
	_, policy := s.policy(ctx)
	if !policy.CanManageStock() {
		return nil, fmt.Errorf("%w: receiving stock requires admin or manager", ErrForbidden)
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
	if req.MinStockLevel != nil && *req.MinStockLevel < 0 {
		return nil, fmt.Errorf("%w: min_stock_level cannot be negative", store.ErrInvalidInput)
	}

	product, err := s.repo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.InventoryType != domain.InventoryTypeQuantity {
		return nil, fmt.Errorf("%w: unique products are received through the imei registry", store.ErrInvalidInput)
	}
	if _, err := s.repo.GetBranchByID(ctx, branchID); err != nil {
		return nil, fmt.Errorf("%w: branch %d", store.ErrForeignKey, branchID)
	}

	stock, err := s.repo.ReceiveStock(ctx, branchID, req.ProductID, req.Quantity, req.MinStockLevel)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, branchID, "stock_receive", "product", product.SKU, fmt.Sprintf("qty=%d", req.Quantity))
	return stock, nil
}

// --- imei registry ---

func (s *Service) RegisterIMEI(ctx context.Context, req domain.IMEIRegisterRequest) (*domain.IMEIRecord, error) {
	_, policy := s.policy(ctx)
	if !policy.CanManageStock() {
		return nil, fmt.Errorf("%w: registering imeis requires admin or manager", ErrForbidden)
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

	product, err := s.repo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.InventoryType != domain.InventoryTypeUnique {
		return nil, fmt.Errorf("%w: product %s is not imei-tracked", store.ErrInvalidInput, product.SKU)
	}
	if _, err := s.repo.GetBranchByID(ctx, branchID); err != nil {
		return nil, fmt.Errorf("%w: branch %d", store.ErrForeignKey, branchID)
	}

	rec, err := s.repo.RegisterIMEI(ctx, domain.IMEIRecord{
		IMEI:      strings.TrimSpace(req.IMEI),
		ProductID: req.ProductID,
		BranchID:  branchID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, branchID, "imei_register", "imei", rec.IMEI, product.SKU)
	return rec, nil
}

func (s *Service) ListIMEIs(ctx context.Context, branchID int64, productID int64, status string, limit int) ([]domain.IMEIRecord, error) {
	branchID, err := s.resolveBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListIMEIs(ctx, branchID, productID, status, limit)
}

// --- transfers ---

// CreateTransfer places a reservation at the source branch. Stock moves only
// when the receiving side confirms with CompleteTransfer.
func (s *Service) CreateTransfer(ctx context.Context, req domain.TransferCreateRequest) (*domain.StockTransfer, error) {
	actor, policy := s.policy(ctx)
	if !policy.CanTransferStock() {
		return nil, fmt.Errorf("%w: transfers require admin or manager", ErrForbidden)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if !policy.CanAccessBranch(req.FromBranchID) {
		return nil, fmt.Errorf("%w: branch %d", ErrForbidden, req.FromBranchID)
	}
	if req.FromBranchID == req.ToBranchID {
		return nil, fmt.Errorf("%w: source and destination branch are the same", store.ErrInvalidInput)
	}

	product, err := s.repo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetBranchByID(ctx, req.ToBranchID); err != nil {
		return nil, fmt.Errorf("%w: branch %d", store.ErrForeignKey, req.ToBranchID)
	}

	imei := strings.TrimSpace(req.IMEI)
	quantity := req.Quantity
	switch product.InventoryType {
	case domain.InventoryTypeUnique:
		if imei == "" {
			return nil, fmt.Errorf("%w: product %s transfers by imei", store.ErrInvalidInput, product.SKU)
		}
		quantity = 1
	case domain.InventoryTypeQuantity:
		if imei != "" {
			return nil, fmt.Errorf("%w: product %s does not take an imei", store.ErrInvalidInput, product.SKU)
		}
		if quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
		}
	}

	now := time.Now().UTC()
	userID, err := s.effectiveUserID(ctx, actor)
	if err != nil {
		return nil, err
	}

	transfer, err := s.repo.CreateTransfer(ctx, domain.StockTransfer{
		TransferNumber: numbergen.Transfer(now),
		FromBranchID:   req.FromBranchID,
		ToBranchID:     req.ToBranchID,
		ProductID:      req.ProductID,
		Quantity:       quantity,
		IMEI:           imei,
		RequestedBy:    userID,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, req.FromBranchID, "transfer_create", "transfer", transfer.TransferNumber,
		fmt.Sprintf("product=%s qty=%d to_branch=%d", product.SKU, quantity, req.ToBranchID))
	return transfer, nil
}

func (s *Service) CompleteTransfer(ctx context.Context, id int64) (*domain.StockTransfer, error) {
	return s.finishTransfer(ctx, id, true)
}

func (s *Service) CancelTransfer(ctx context.Context, id int64) (*domain.StockTransfer, error) {
	return s.finishTransfer(ctx, id, false)
}

func (s *Service) finishTransfer(ctx context.Context, id int64, complete bool) (*domain.StockTransfer, error) {
	actor, policy := s.policy(ctx)
	if !policy.CanTransferStock() {
		return nil, fmt.Errorf("%w: transfers require admin or manager", ErrForbidden)
	}

	userID, err := s.effectiveUserID(ctx, actor)
	if err != nil {
		return nil, err
	}

	var transfer *domain.StockTransfer
	action := "transfer_cancel"
	if complete {
		transfer, err = s.repo.CompleteTransfer(ctx, id, userID, time.Now().UTC())
		action = "transfer_complete"
	} else {
		transfer, err = s.repo.CancelTransfer(ctx, id, userID, time.Now().UTC())
	}
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, transfer.FromBranchID, action, "transfer", transfer.TransferNumber, "")
	return transfer, nil
}

func (s *Service) ListTransfers(ctx context.Context, branchID int64, status string, limit int) ([]domain.StockTransfer, error) {
	branchID, err := s.resolveBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransfers(ctx, branchID, status, limit)
}

// resolveBranch applies branch pinning for reads: non-admin actors default to
// and are restricted to their own branch.
func (s *Service) resolveBranch(ctx context.Context, branchID int64) (int64, error) {
	_, policy := s.policy(ctx)
	if policy.IsAdmin() {
		return branchID, nil
	}
	if branchID == 0 {
		branchID = policy.BranchID
	}
	if !policy.CanAccessBranch(branchID) {
		return 0, fmt.Errorf("%w: branch %d", ErrForbidden, branchID)
	}
	return branchID, nil
}
