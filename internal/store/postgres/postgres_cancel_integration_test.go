package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ponselkita/backend/internal/domain"
)

func TestCancelSaleRestocksInventory(t *testing.T) {
	databaseURL := os.Getenv("PONSELKITA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PONSELKITA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	branchCode := fmt.Sprintf("IT%d", stamp%100000)
	sku := fmt.Sprintf("SKU-CANCEL-IT-%d", stamp)
	invoice := fmt.Sprintf("%s-INV-IT-%d", branchCode, stamp)
	username := fmt.Sprintf("kasir-it-%d", stamp)

	var branchID int64
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO branches (code, name, phone, address, active, created_at)
		VALUES ($1, 'Cabang Integrasi', '', '', true, now())
		RETURNING id
	`, branchCode).Scan(&branchID); err != nil {
		t.Fatalf("insert branch: %v", err)
	}

	var productID int64
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (sku, name, brand, category, inventory_type, base_price, wholesale_price, retail_price, active, created_at)
		VALUES ($1, 'Casing Integrasi', 'Generic', 'accessory', 'quantity', 40000, 50000, 75000, true, now())
		RETURNING id
	`, sku).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	var userID int64
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password, full_name, role, branch_id, active, created_at)
		VALUES ($1, 'x', 'Kasir Integrasi', 'cashier', $2, true, now())
		RETURNING id
	`, username, branchID).Scan(&userID); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO branch_stock (branch_id, product_id, quantity, reserved_quantity, min_stock_level, updated_at)
		VALUES ($1, $2, 10, 0, 0, now())
	`, branchID, productID); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE sale_id IN (SELECT id FROM sales WHERE invoice_number = $1)`, invoice)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id IN (SELECT id FROM sales WHERE invoice_number = $1)`, invoice)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE invoice_number = $1`, invoice)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM branch_stock WHERE branch_id = $1 AND product_id = $2`, branchID, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM branches WHERE id = $1`, branchID)
	})

	now := time.Now().UTC()
	price := decimal.NewFromInt(75000)
	total := price.Mul(decimal.NewFromInt(2))
	sale := domain.Sale{
		InvoiceNumber: invoice,
		BranchID:      branchID,
		UserID:        userID,
		Subtotal:      total,
		Total:         total,
		Paid:          total,
		Due:           decimal.Zero,
		PaymentStatus: domain.PaymentStatusPaid,
		SaleStatus:    domain.SaleStatusCompleted,
		CreatedAt:     now,
		Items: []domain.SaleItem{{
			ProductID:   productID,
			ProductName: "Casing Integrasi",
			ProductSKU:  sku,
			Quantity:    2,
			UnitPrice:   price,
			Subtotal:    total,
		}},
	}
	payment := &domain.Payment{
		Amount:    total,
		Method:    "cash",
		CreatedBy: userID,
		CreatedAt: now,
	}

	created, err := s.CreateSale(ctx, sale, payment)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	var qty int
	if err := s.db.QueryRowContext(ctx, `
		SELECT quantity FROM branch_stock WHERE branch_id = $1 AND product_id = $2
	`, branchID, productID).Scan(&qty); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if qty != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", qty)
	}

	cancelled, err := s.CancelSale(ctx, created.ID, "integration test cancel", now.Add(time.Second))
	if err != nil {
		t.Fatalf("cancel sale: %v", err)
	}
	if cancelled.SaleStatus != domain.SaleStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.SaleStatus)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT quantity FROM branch_stock WHERE branch_id = $1 AND product_id = $2
	`, branchID, productID).Scan(&qty); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if qty != 10 {
		t.Fatalf("expected stock 10 after cancel restock, got %d", qty)
	}
}
