package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ponselkita/backend/internal/cache"
	"ponselkita/backend/internal/domain"
	"ponselkita/backend/internal/store"
	"ponselkita/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(repo, cache.NoopSummaryCache{}, logger, time.Minute), repo
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 3, Username: "cashier", Role: domain.RoleCashier, BranchID: 1})
}

func managerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 2, Username: "manager", Role: domain.RoleManager, BranchID: 1})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 1, Username: "admin", Role: domain.RoleAdmin})
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func accessorySale(paid int64) domain.SaleCreateRequest {
	return domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: 4, Quantity: 2, UnitPrice: dec(100)},
			{ProductID: 5, Quantity: 1, UnitPrice: dec(50)},
		},
		Discount:      dec(10),
		TaxRate:       dec(10),
		Paid:          dec(paid),
		PaymentMethod: "cash",
	}
}

func TestCreateSaleTotals(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(264))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	if !sale.Subtotal.Equal(dec(250)) {
		t.Fatalf("subtotal = %s, want 250", sale.Subtotal)
	}
	if !sale.Tax.Equal(dec(24)) {
		t.Fatalf("tax = %s, want 24", sale.Tax)
	}
	if !sale.Total.Equal(dec(264)) {
		t.Fatalf("total = %s, want 264", sale.Total)
	}
	if !sale.Due.IsZero() {
		t.Fatalf("due = %s, want 0", sale.Due)
	}
	if sale.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", sale.PaymentStatus)
	}
	if sale.SaleStatus != domain.SaleStatusCompleted {
		t.Fatalf("sale status = %s, want completed", sale.SaleStatus)
	}
	if len(sale.Payments) != 1 || !sale.Payments[0].Amount.Equal(dec(264)) {
		t.Fatalf("expected one payment of 264, got %+v", sale.Payments)
	}
	if sale.InvoiceNumber == "" {
		t.Fatalf("expected invoice number to be assigned")
	}
}

func TestCreateSalePartialPayment(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(100))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if !sale.Due.Equal(dec(164)) {
		t.Fatalf("due = %s, want 164", sale.Due)
	}
	if sale.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("payment status = %s, want partial", sale.PaymentStatus)
	}
}

func TestCreateSaleDecrementsStock(t *testing.T) {
	svc, repo := newTestService(t)

	if _, err := svc.CreateSale(cashierCtx(), accessorySale(264)); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	st, err := repo.GetBranchStock(context.Background(), 1, 4)
	if err != nil {
		t.Fatalf("GetBranchStock: %v", err)
	}
	if st.Quantity != 48 {
		t.Fatalf("product 4 quantity = %d, want 48", st.Quantity)
	}
}

func TestCreateSaleAtomicOnFailedLine(t *testing.T) {
	svc, repo := newTestService(t)

	req := domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: 4, Quantity: 2, UnitPrice: dec(100)},
			{ProductID: 1, Quantity: 1, IMEI: "000000000000000"},
		},
	}
	_, err := svc.CreateSale(cashierCtx(), req)
	if !errors.Is(err, store.ErrIMEIUnavailable) {
		t.Fatalf("expected ErrIMEIUnavailable, got %v", err)
	}

	st, err := repo.GetBranchStock(context.Background(), 1, 4)
	if err != nil {
		t.Fatalf("GetBranchStock: %v", err)
	}
	if st.Quantity != 50 {
		t.Fatalf("product 4 quantity = %d, want untouched 50", st.Quantity)
	}
}

func TestCreateSaleInsufficientStock(t *testing.T) {
	svc, _ := newTestService(t)

	req := domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{{ProductID: 4, Quantity: 51, UnitPrice: dec(100)}},
	}
	_, err := svc.CreateSale(cashierCtx(), req)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestAdminCannotSell(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateSale(adminCtx(), accessorySale(0))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for admin checkout, got %v", err)
	}
}

func TestCashierPinnedToOwnBranch(t *testing.T) {
	svc, _ := newTestService(t)

	req := accessorySale(0)
	req.BranchID = 2
	_, err := svc.CreateSale(cashierCtx(), req)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for cross-branch sale, got %v", err)
	}
}

func TestCreateSaleOverTenderClassifiedPaid(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(500))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if sale.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", sale.PaymentStatus)
	}
	if !sale.Due.IsZero() {
		t.Fatalf("due = %s, want 0", sale.Due)
	}
	if !sale.Paid.Equal(dec(500)) {
		t.Fatalf("paid = %s, want 500", sale.Paid)
	}
}

func TestCreateSaleRejectsInactiveBranch(t *testing.T) {
	svc, repo := newTestService(t)

	branch, err := repo.CreateBranch(context.Background(), domain.Branch{
		Code: "BDG03", Name: "Bandung", Active: false, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	ctx := WithActor(context.Background(), domain.Actor{
		UserID: 3, Username: "cashier", Role: domain.RoleCashier, BranchID: branch.ID,
	})
	_, err = svc.CreateSale(ctx, accessorySale(100))
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for inactive branch, got %v", err)
	}
}

func TestAddPayment(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(100))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	updated, err := svc.AddPayment(cashierCtx(), sale.InvoiceNumber, domain.PaymentCreateRequest{
		Amount: dec(164), Method: "transfer",
	})
	if err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	if !updated.Due.IsZero() || updated.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected settled sale, got due=%s status=%s", updated.Due, updated.PaymentStatus)
	}
	if len(updated.Payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(updated.Payments))
	}

	over, err := svc.AddPayment(cashierCtx(), sale.InvoiceNumber, domain.PaymentCreateRequest{
		Amount: dec(40), Method: "cash",
	})
	if err != nil {
		t.Fatalf("AddPayment over-tender: %v", err)
	}
	if over.PaymentStatus != domain.PaymentStatusPaid || !over.Due.IsZero() {
		t.Fatalf("expected over-tender to stay settled, got status=%s due=%s", over.PaymentStatus, over.Due)
	}
	if !over.Paid.Equal(dec(304)) {
		t.Fatalf("paid = %s, want 304", over.Paid)
	}
}

func TestCancelSaleRestoresStockAndRejectsRepeat(t *testing.T) {
	svc, repo := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(264))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	cancelled, err := svc.CancelSale(managerCtx(), sale.InvoiceNumber, domain.SaleCancelRequest{Reason: "customer walked out"})
	if err != nil {
		t.Fatalf("CancelSale: %v", err)
	}
	if cancelled.SaleStatus != domain.SaleStatusCancelled {
		t.Fatalf("sale status = %s, want cancelled", cancelled.SaleStatus)
	}

	st, err := repo.GetBranchStock(context.Background(), 1, 4)
	if err != nil {
		t.Fatalf("GetBranchStock: %v", err)
	}
	if st.Quantity != 50 {
		t.Fatalf("product 4 quantity = %d, want restored 50", st.Quantity)
	}

	_, err = svc.CancelSale(managerCtx(), sale.InvoiceNumber, domain.SaleCancelRequest{Reason: "again"})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for double cancel, got %v", err)
	}
}

func TestCancelSaleRequiresManagerRole(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(264))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	_, err = svc.CancelSale(cashierCtx(), sale.InvoiceNumber, domain.SaleCancelRequest{Reason: "nope"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for cashier cancel, got %v", err)
	}
}

func TestRefundApproveAdjustsSale(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(264))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	refund, err := svc.CreateRefund(cashierCtx(), sale.InvoiceNumber, domain.RefundCreateRequest{
		Amount: dec(50), Reason: "dead pixel",
	})
	if err != nil {
		t.Fatalf("CreateRefund: %v", err)
	}
	if refund.Status != domain.RefundStatusPending {
		t.Fatalf("refund status = %s, want pending", refund.Status)
	}

	processed, err := svc.ProcessRefund(managerCtx(), refund.ID, domain.RefundProcessRequest{Action: "approve"})
	if err != nil {
		t.Fatalf("ProcessRefund: %v", err)
	}
	if processed.Status != domain.RefundStatusCompleted {
		t.Fatalf("refund status = %s, want completed", processed.Status)
	}

	after, err := svc.GetSale(managerCtx(), sale.InvoiceNumber)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if !after.Paid.Equal(dec(214)) {
		t.Fatalf("paid = %s, want 214", after.Paid)
	}
	if !after.Due.Equal(dec(50)) {
		t.Fatalf("due = %s, want 50", after.Due)
	}
	if after.SaleStatus != domain.SaleStatusRefunded {
		t.Fatalf("sale status = %s, want refunded", after.SaleStatus)
	}

	_, err = svc.ProcessRefund(managerCtx(), refund.ID, domain.RefundProcessRequest{Action: "approve"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for already processed refund, got %v", err)
	}
}

func TestRefundRejectLeavesSaleUntouched(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(264))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	refund, err := svc.CreateRefund(cashierCtx(), sale.InvoiceNumber, domain.RefundCreateRequest{
		Amount: dec(50), Reason: "changed mind",
	})
	if err != nil {
		t.Fatalf("CreateRefund: %v", err)
	}

	processed, err := svc.ProcessRefund(managerCtx(), refund.ID, domain.RefundProcessRequest{Action: "reject"})
	if err != nil {
		t.Fatalf("ProcessRefund: %v", err)
	}
	if processed.Status != domain.RefundStatusRejected {
		t.Fatalf("refund status = %s, want rejected", processed.Status)
	}

	after, err := svc.GetSale(managerCtx(), sale.InvoiceNumber)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if !after.Paid.Equal(dec(264)) || after.SaleStatus != domain.SaleStatusCompleted {
		t.Fatalf("rejected refund mutated sale: paid=%s status=%s", after.Paid, after.SaleStatus)
	}
}

func TestRefundExceedingPaidRejected(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(100))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	_, err = svc.CreateRefund(cashierCtx(), sale.InvoiceNumber, domain.RefundCreateRequest{
		Amount: dec(150), Reason: "too much",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRefundProcessingRequiresManagerRole(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(264))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	refund, err := svc.CreateRefund(cashierCtx(), sale.InvoiceNumber, domain.RefundCreateRequest{
		Amount: dec(10), Reason: "scratch",
	})
	if err != nil {
		t.Fatalf("CreateRefund: %v", err)
	}

	_, err = svc.ProcessRefund(cashierCtx(), refund.ID, domain.RefundProcessRequest{Action: "approve"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestIMEISaleLifecycle(t *testing.T) {
	svc, repo := newTestService(t)
	const imei = "356789104563217"

	sale, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{{ProductID: 1, Quantity: 1, IMEI: imei}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	rec, err := repo.GetIMEI(context.Background(), imei)
	if err != nil {
		t.Fatalf("GetIMEI: %v", err)
	}
	if rec.Status != domain.IMEIStatusSold || rec.SaleID == nil || *rec.SaleID != sale.ID {
		t.Fatalf("expected imei sold under sale %d, got status=%s", sale.ID, rec.Status)
	}

	// The same unit cannot be sold twice.
	_, err = svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{{ProductID: 1, Quantity: 1, IMEI: imei}},
	})
	if !errors.Is(err, store.ErrIMEIUnavailable) {
		t.Fatalf("expected ErrIMEIUnavailable on resale, got %v", err)
	}

	if _, err := svc.CancelSale(managerCtx(), sale.InvoiceNumber, domain.SaleCancelRequest{Reason: "return to shelf"}); err != nil {
		t.Fatalf("CancelSale: %v", err)
	}
	rec, err = repo.GetIMEI(context.Background(), imei)
	if err != nil {
		t.Fatalf("GetIMEI: %v", err)
	}
	if rec.Status != domain.IMEIStatusAvailable || rec.SaleID != nil {
		t.Fatalf("expected imei released after cancel, got status=%s", rec.Status)
	}
}

func TestRegisterIMEIRejectsQuantityProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RegisterIMEI(managerCtx(), domain.IMEIRegisterRequest{
		ProductID: 4, IMEI: "490154203237518",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTransferReservesThenMovesStock(t *testing.T) {
	svc, repo := newTestService(t)

	transfer, err := svc.CreateTransfer(adminCtx(), domain.TransferCreateRequest{
		FromBranchID: 1, ToBranchID: 2, ProductID: 4, Quantity: 5,
	})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if transfer.Status != domain.TransferStatusPending {
		t.Fatalf("transfer status = %s, want pending", transfer.Status)
	}

	src, _ := repo.GetBranchStock(context.Background(), 1, 4)
	if src.Quantity != 50 || src.ReservedQuantity != 5 || src.Available() != 45 {
		t.Fatalf("expected reservation only, got qty=%d reserved=%d", src.Quantity, src.ReservedQuantity)
	}

	if _, err := svc.CompleteTransfer(adminCtx(), transfer.ID); err != nil {
		t.Fatalf("CompleteTransfer: %v", err)
	}

	src, _ = repo.GetBranchStock(context.Background(), 1, 4)
	dst, _ := repo.GetBranchStock(context.Background(), 2, 4)
	if src.Quantity != 45 || src.ReservedQuantity != 0 {
		t.Fatalf("source after complete: qty=%d reserved=%d, want 45/0", src.Quantity, src.ReservedQuantity)
	}
	if dst.Quantity != 35 {
		t.Fatalf("destination after complete: qty=%d, want 35", dst.Quantity)
	}

	_, err = svc.CompleteTransfer(adminCtx(), transfer.ID)
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for double complete, got %v", err)
	}
}

func TestTransferCancelReleasesReservation(t *testing.T) {
	svc, repo := newTestService(t)

	transfer, err := svc.CreateTransfer(adminCtx(), domain.TransferCreateRequest{
		FromBranchID: 1, ToBranchID: 2, ProductID: 4, Quantity: 5,
	})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if _, err := svc.CancelTransfer(adminCtx(), transfer.ID); err != nil {
		t.Fatalf("CancelTransfer: %v", err)
	}

	src, _ := repo.GetBranchStock(context.Background(), 1, 4)
	if src.Quantity != 50 || src.ReservedQuantity != 0 {
		t.Fatalf("expected reservation released, got qty=%d reserved=%d", src.Quantity, src.ReservedQuantity)
	}
}

func TestTransferReservationBlocksOverselling(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.CreateTransfer(adminCtx(), domain.TransferCreateRequest{
		FromBranchID: 1, ToBranchID: 2, ProductID: 4, Quantity: 48,
	}); err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	// 50 on hand, 48 reserved: only 2 sellable.
	_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{{ProductID: 4, Quantity: 3, UnitPrice: dec(100)}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock against reserved stock, got %v", err)
	}
}

func TestTransferIMEIMovesBranch(t *testing.T) {
	svc, repo := newTestService(t)
	const imei = "356789104563217"

	transfer, err := svc.CreateTransfer(adminCtx(), domain.TransferCreateRequest{
		FromBranchID: 1, ToBranchID: 2, ProductID: 1, IMEI: imei,
	})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	rec, _ := repo.GetIMEI(context.Background(), imei)
	if rec.Status != domain.IMEIStatusReserved {
		t.Fatalf("expected reserved imei while pending, got %s", rec.Status)
	}

	if _, err := svc.CompleteTransfer(adminCtx(), transfer.ID); err != nil {
		t.Fatalf("CompleteTransfer: %v", err)
	}
	rec, _ = repo.GetIMEI(context.Background(), imei)
	if rec.BranchID != 2 || rec.Status != domain.IMEIStatusAvailable {
		t.Fatalf("expected imei available at branch 2, got branch=%d status=%s", rec.BranchID, rec.Status)
	}
}

func TestSalesSummary(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.CreateSale(cashierCtx(), accessorySale(264)); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if _, err := svc.CreateSale(cashierCtx(), accessorySale(100)); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	summary, err := svc.SalesSummary(managerCtx(), 0, "")
	if err != nil {
		t.Fatalf("SalesSummary: %v", err)
	}
	if summary.SaleCount != 2 {
		t.Fatalf("sale count = %d, want 2", summary.SaleCount)
	}
	if !summary.GrossTotal.Equal(dec(528)) {
		t.Fatalf("gross = %s, want 528", summary.GrossTotal)
	}
	if !summary.TotalDue.Equal(dec(164)) {
		t.Fatalf("total due = %s, want 164", summary.TotalDue)
	}
}

func TestGetSaleByIDAndInvoice(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), accessorySale(0))
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	byInvoice, err := svc.GetSale(cashierCtx(), sale.InvoiceNumber)
	if err != nil || byInvoice.ID != sale.ID {
		t.Fatalf("lookup by invoice failed: %v", err)
	}
	byID, err := svc.GetSale(cashierCtx(), "1")
	if err != nil || byID.ID != sale.ID {
		t.Fatalf("lookup by id failed: %v", err)
	}
}

func TestAuditTrailRecordsSale(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.CreateSale(cashierCtx(), accessorySale(264)); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	logs, err := svc.ListAuditLogs(managerCtx(), 1, 10)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(logs) == 0 || logs[0].Action != "sale_create" {
		t.Fatalf("expected sale_create audit entry, got %+v", logs)
	}
}

func TestListSalesFilters(t *testing.T) {
	svc, _ := newTestService(t)

	customerID := int64(1)
	withCustomer := accessorySale(264)
	withCustomer.CustomerID = &customerID
	if _, err := svc.CreateSale(cashierCtx(), withCustomer); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if _, err := svc.CreateSale(cashierCtx(), accessorySale(100)); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	byCustomer, err := svc.ListSales(managerCtx(), domain.SaleListFilter{CustomerID: customerID})
	if err != nil {
		t.Fatalf("ListSales by customer: %v", err)
	}
	if len(byCustomer) != 1 || byCustomer[0].CustomerID == nil || *byCustomer[0].CustomerID != customerID {
		t.Fatalf("expected one sale for customer %d, got %+v", customerID, byCustomer)
	}

	partial, err := svc.ListSales(managerCtx(), domain.SaleListFilter{PaymentStatus: domain.PaymentStatusPartial})
	if err != nil {
		t.Fatalf("ListSales by payment status: %v", err)
	}
	if len(partial) != 1 || partial[0].PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("expected one partial sale, got %+v", partial)
	}

	now := time.Now().UTC()
	today, err := svc.ListSales(managerCtx(), domain.SaleListFilter{
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("ListSales by date window: %v", err)
	}
	if len(today) != 2 {
		t.Fatalf("expected both sales inside the window, got %d", len(today))
	}

	future, err := svc.ListSales(managerCtx(), domain.SaleListFilter{StartDate: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("ListSales future window: %v", err)
	}
	if len(future) != 0 {
		t.Fatalf("expected no sales after the window start, got %d", len(future))
	}

	paged, err := svc.ListSales(managerCtx(), domain.SaleListFilter{Offset: 1})
	if err != nil {
		t.Fatalf("ListSales with offset: %v", err)
	}
	if len(paged) != 1 {
		t.Fatalf("expected one sale after skipping the first, got %d", len(paged))
	}
}
