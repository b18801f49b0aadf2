package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"ponselkita/backend/internal/domain"
	"ponselkita/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx so row loaders can run
// inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// classify maps driver errors onto the store's sentinel errors so callers can
// branch with errors.Is without knowing about postgres.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
		case pgErr.Code == "23503":
			return fmt.Errorf("%w: %s", store.ErrForeignKey, pgErr.ConstraintName)
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57"):
			return fmt.Errorf("%w: %s", store.ErrUnavailable, pgErr.Code)
		}
	}
	return err
}

// --- branches ---

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, phone, address, active, created_at
		FROM branches
		ORDER BY id
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 16)
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Phone, &b.Address, &b.Active, &b.CreatedAt); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (s *Store) GetBranchByID(ctx context.Context, id int64) (*domain.Branch, error) {
	var b domain.Branch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, phone, address, active, created_at
		FROM branches
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Code, &b.Name, &b.Phone, &b.Address, &b.Active, &b.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &b, nil
}

func (s *Store) CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO branches (code, name, phone, address, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, branch.Code, branch.Name, branch.Phone, branch.Address, branch.Active, branch.CreatedAt).Scan(&branch.ID)
	if err != nil {
		return nil, classify(err)
	}
	return &branch, nil
}

// --- products ---

const productColumns = `id, sku, name, brand, category, inventory_type, base_price, wholesale_price, retail_price, active, created_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Brand, &p.Category, &p.InventoryType,
		&p.BasePrice, &p.WholesalePrice, &p.RetailPrice, &p.Active, &p.CreatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true
		  AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR sku ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%')
		ORDER BY id
		LIMIT $2
	`, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1
	`, id))
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE sku = $1
	`, sku))
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (sku, name, brand, category, inventory_type, base_price, wholesale_price, retail_price, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, product.SKU, product.Name, product.Brand, product.Category, product.InventoryType,
		product.BasePrice, product.WholesalePrice, product.RetailPrice, product.Active, product.CreatedAt).Scan(&product.ID)
	if err != nil {
		return nil, classify(err)
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, brand = $3, category = $4, base_price = $5, wholesale_price = $6, retail_price = $7, active = $8
		WHERE id = $1
	`, product.ID, product.Name, product.Brand, product.Category,
		product.BasePrice, product.WholesalePrice, product.RetailPrice, product.Active)
	if err != nil {
		return nil, classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

// --- customers ---

func (s *Store) ListCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, address, created_at
		FROM customers
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR phone LIKE '%' || $1 || '%'
		ORDER BY id
		LIMIT $2
	`, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, address, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, phone, email, address, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, customer.Name, customer.Phone, customer.Email, customer.Address, customer.CreatedAt).Scan(&customer.ID)
	if err != nil {
		return nil, classify(err)
	}
	return &customer, nil
}

// --- stock ledger ---

func (s *Store) ListBranchStock(ctx context.Context, branchID int64) ([]domain.BranchStock, error) {
	return s.listStock(ctx, branchID, false)
}

func (s *Store) ListLowStock(ctx context.Context, branchID int64) ([]domain.BranchStock, error) {
	return s.listStock(ctx, branchID, true)
}

func (s *Store) listStock(ctx context.Context, branchID int64, lowOnly bool) ([]domain.BranchStock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bs.branch_id, bs.product_id, p.sku, p.name, bs.quantity, bs.reserved_quantity, bs.min_stock_level, bs.updated_at
		FROM branch_stock bs
		JOIN products p ON p.id = bs.product_id
		WHERE bs.branch_id = $1
		  AND ($2 = false OR bs.quantity <= bs.min_stock_level)
		ORDER BY bs.product_id
	`, branchID, lowOnly)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	stocks := make([]domain.BranchStock, 0, 64)
	for rows.Next() {
		var st domain.BranchStock
		if err := rows.Scan(&st.BranchID, &st.ProductID, &st.ProductSKU, &st.ProductName,
			&st.Quantity, &st.ReservedQuantity, &st.MinStockLevel, &st.UpdatedAt); err != nil {
			return nil, err
		}
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

func (s *Store) GetBranchStock(ctx context.Context, branchID int64, productID int64) (*domain.BranchStock, error) {
	var st domain.BranchStock
	err := s.db.QueryRowContext(ctx, `
		SELECT branch_id, product_id, quantity, reserved_quantity, min_stock_level, updated_at
		FROM branch_stock
		WHERE branch_id = $1 AND product_id = $2
	`, branchID, productID).Scan(&st.BranchID, &st.ProductID, &st.Quantity, &st.ReservedQuantity, &st.MinStockLevel, &st.UpdatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &st, nil
}

func (s *Store) ReceiveStock(ctx context.Context, branchID int64, productID int64, qty int, minStockLevel *int) (*domain.BranchStock, error) {
	var st domain.BranchStock
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO branch_stock (branch_id, product_id, quantity, reserved_quantity, min_stock_level, updated_at)
		VALUES ($1, $2, $3, 0, COALESCE($4, 0), now())
		ON CONFLICT (branch_id, product_id)
		DO UPDATE SET quantity = branch_stock.quantity + $3,
		              min_stock_level = COALESCE($4, branch_stock.min_stock_level),
		              updated_at = now()
		RETURNING branch_id, product_id, quantity, reserved_quantity, min_stock_level, updated_at
	`, branchID, productID, qty, minStockLevel).Scan(&st.BranchID, &st.ProductID, &st.Quantity, &st.ReservedQuantity, &st.MinStockLevel, &st.UpdatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &st, nil
}

// --- imei registry ---

func (s *Store) RegisterIMEI(ctx context.Context, rec domain.IMEIRecord) (*domain.IMEIRecord, error) {
	rec.Status = domain.IMEIStatusAvailable
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO product_imeis (imei, product_id, branch_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, rec.IMEI, rec.ProductID, rec.BranchID, rec.Status, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		return nil, classify(err)
	}
	return &rec, nil
}

func (s *Store) GetIMEI(ctx context.Context, imei string) (*domain.IMEIRecord, error) {
	var rec domain.IMEIRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, imei, product_id, branch_id, status, sale_id, created_at
		FROM product_imeis
		WHERE imei = $1
	`, imei).Scan(&rec.ID, &rec.IMEI, &rec.ProductID, &rec.BranchID, &rec.Status, &rec.SaleID, &rec.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &rec, nil
}

func (s *Store) ListIMEIs(ctx context.Context, branchID int64, productID int64, status string, limit int) ([]domain.IMEIRecord, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, imei, product_id, branch_id, status, sale_id, created_at
		FROM product_imeis
		WHERE ($1 = 0 OR branch_id = $1)
		  AND ($2 = 0 OR product_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY id
		LIMIT $4
	`, branchID, productID, status, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	records := make([]domain.IMEIRecord, 0, limit)
	for rows.Next() {
		var rec domain.IMEIRecord
		if err := rows.Scan(&rec.ID, &rec.IMEI, &rec.ProductID, &rec.BranchID, &rec.Status, &rec.SaleID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- sales ---

// CreateSale applies the whole sale in one serializable transaction. Stock is
// taken with a conditional decrement and IMEIs with a conditional status
// flip, so two concurrent sales can never both consume the last unit.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, payment *domain.Payment) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (invoice_number, branch_id, customer_id, user_id, subtotal, discount, tax_rate, tax, total, paid, due, payment_status, sale_status, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`, sale.InvoiceNumber, sale.BranchID, sale.CustomerID, sale.UserID,
		sale.Subtotal, sale.Discount, sale.TaxRate, sale.Tax, sale.Total, sale.Paid, sale.Due,
		sale.PaymentStatus, sale.SaleStatus, sale.Notes, sale.CreatedAt).Scan(&sale.ID)
	if err != nil {
		return nil, classify(err)
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID

		if item.IMEI != "" {
			res, err := tx.ExecContext(ctx, `
				UPDATE product_imeis
				SET status = $1, sale_id = $2
				WHERE imei = $3 AND product_id = $4 AND branch_id = $5 AND status = $6
			`, domain.IMEIStatusSold, sale.ID, item.IMEI, item.ProductID, sale.BranchID, domain.IMEIStatusAvailable)
			if err != nil {
				return nil, classify(err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return nil, fmt.Errorf("%w: imei %s", store.ErrIMEIUnavailable, item.IMEI)
			}
		} else {
			res, err := tx.ExecContext(ctx, `
				UPDATE branch_stock
				SET quantity = quantity - $1, updated_at = now()
				WHERE branch_id = $2 AND product_id = $3 AND quantity - reserved_quantity >= $1
			`, item.Quantity, sale.BranchID, item.ProductID)
			if err != nil {
				return nil, classify(err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return nil, fmt.Errorf("%w: product %d at branch %d", store.ErrInsufficientStock, item.ProductID, sale.BranchID)
			}
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, product_sku, imei, quantity, unit_price, discount, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING id
		`, item.SaleID, item.ProductID, item.ProductName, item.ProductSKU, item.IMEI,
			item.Quantity, item.UnitPrice, item.Discount, item.Subtotal).Scan(&item.ID)
		if err != nil {
			return nil, classify(err)
		}
	}

	if payment != nil {
		p := *payment
		p.SaleID = sale.ID
		p.CreatedAt = sale.CreatedAt
		err = tx.QueryRowContext(ctx, `
			INSERT INTO payments (sale_id, amount, method, reference, created_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, p.SaleID, p.Amount, p.Method, p.Reference, p.CreatedBy, p.CreatedAt).Scan(&p.ID)
		if err != nil {
			return nil, classify(err)
		}
		sale.Payments = append(sale.Payments, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return &sale, nil
}

const saleColumns = `id, invoice_number, branch_id, customer_id, user_id, subtotal, discount, tax_rate, tax, total, paid, due, payment_status, sale_status, notes, created_at`

func scanSale(row interface{ Scan(dest ...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(&sale.ID, &sale.InvoiceNumber, &sale.BranchID, &sale.CustomerID, &sale.UserID,
		&sale.Subtotal, &sale.Discount, &sale.TaxRate, &sale.Tax, &sale.Total, &sale.Paid, &sale.Due,
		&sale.PaymentStatus, &sale.SaleStatus, &sale.Notes, &sale.CreatedAt)
	return sale, err
}

func loadSale(ctx context.Context, q querier, id int64) (*domain.Sale, error) {
	sale, err := scanSale(q.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE id = $1
	`, id))
	if err != nil {
		return nil, classify(err)
	}

	itemRows, err := q.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, product_sku, imei, quantity, unit_price, discount, subtotal
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, classify(err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item domain.SaleItem
		if err := itemRows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.ProductSKU,
			&item.IMEI, &item.Quantity, &item.UnitPrice, &item.Discount, &item.Subtotal); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	paymentRows, err := q.QueryContext(ctx, `
		SELECT id, sale_id, amount, method, reference, created_by, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, classify(err)
	}
	defer paymentRows.Close()
	for paymentRows.Next() {
		var p domain.Payment
		if err := paymentRows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.Method, &p.Reference, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		sale.Payments = append(sale.Payments, p)
	}
	if err := paymentRows.Err(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id int64) (*domain.Sale, error) {
	return loadSale(ctx, s.db, id)
}

func (s *Store) GetSaleByInvoice(ctx context.Context, invoiceNumber string) (*domain.Sale, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM sales WHERE invoice_number = $1
	`, invoiceNumber).Scan(&id)
	if err != nil {
		return nil, classify(err)
	}
	return loadSale(ctx, s.db, id)
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleListFilter) ([]domain.Sale, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	var startAt, endAt *time.Time
	if !filter.StartDate.IsZero() {
		startAt = &filter.StartDate
	}
	if !filter.EndDate.IsZero() {
		endAt = &filter.EndDate
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1 = 0 OR branch_id = $1)
		  AND ($2 = '' OR sale_status = $2)
		  AND ($3 = '' OR payment_status = $3)
		  AND ($4 = 0 OR customer_id = $4)
		  AND ($5::timestamptz IS NULL OR created_at >= $5)
		  AND ($6::timestamptz IS NULL OR created_at < $6)
		ORDER BY id DESC
		LIMIT $7 OFFSET $8
	`, filter.BranchID, filter.Status, filter.PaymentStatus, filter.CustomerID,
		startAt, endAt, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) AddPayment(ctx context.Context, saleID int64, payment domain.Payment) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	var saleStatus string
	var total, paid decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT sale_status, total, paid
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&saleStatus, &total, &paid)
	if err != nil {
		return nil, classify(err)
	}
	if saleStatus != domain.SaleStatusCompleted {
		return nil, fmt.Errorf("%w: sale is %s", store.ErrInvalidState, saleStatus)
	}

	payment.SaleID = saleID
	payment.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (sale_id, amount, method, reference, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payment.SaleID, payment.Amount, payment.Method, payment.Reference, payment.CreatedBy, payment.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}

	newPaid := paid.Add(payment.Amount)
	newDue := total.Sub(newPaid)
	if newDue.Sign() < 0 {
		newDue = decimal.Zero
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET paid = $2, due = $3, payment_status = $4
		WHERE id = $1
	`, saleID, newPaid, newDue, domain.PaymentStatusFor(total, newPaid))
	if err != nil {
		return nil, classify(err)
	}

	sale, err := loadSale(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return sale, nil
}

func (s *Store) CancelSale(ctx context.Context, saleID int64, reason string, at time.Time) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	var saleStatus string
	var branchID int64
	err = tx.QueryRowContext(ctx, `
		SELECT sale_status, branch_id
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&saleStatus, &branchID)
	if err != nil {
		return nil, classify(err)
	}
	if saleStatus != domain.SaleStatusCompleted {
		return nil, fmt.Errorf("%w: sale is %s", store.ErrInvalidState, saleStatus)
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, imei, quantity
		FROM sale_items
		WHERE sale_id = $1
	`, saleID)
	if err != nil {
		return nil, classify(err)
	}
	type cancelledItem struct {
		productID int64
		imei      string
		qty       int
	}
	items := make([]cancelledItem, 0, 8)
	for itemRows.Next() {
		var item cancelledItem
		if err := itemRows.Scan(&item.productID, &item.imei, &item.qty); err != nil {
			itemRows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.imei != "" {
			_, err = tx.ExecContext(ctx, `
				UPDATE product_imeis
				SET status = $1, sale_id = NULL
				WHERE imei = $2 AND sale_id = $3
			`, domain.IMEIStatusAvailable, item.imei, saleID)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO branch_stock (branch_id, product_id, quantity, reserved_quantity, min_stock_level, updated_at)
				VALUES ($1, $2, $3, 0, 0, $4)
				ON CONFLICT (branch_id, product_id)
				DO UPDATE SET quantity = branch_stock.quantity + $3, updated_at = $4
			`, branchID, item.productID, item.qty, at)
		}
		if err != nil {
			return nil, classify(err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET sale_status = $2,
		    notes = CASE WHEN notes = '' THEN $3 ELSE notes || ' | ' || $3 END
		WHERE id = $1
	`, saleID, domain.SaleStatusCancelled, "cancelled: "+reason)
	if err != nil {
		return nil, classify(err)
	}

	sale, err := loadSale(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return sale, nil
}

// --- refunds ---

func (s *Store) CreateRefund(ctx context.Context, refund domain.Refund) (*domain.Refund, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	var saleStatus string
	var paid decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT sale_status, paid
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, refund.SaleID).Scan(&saleStatus, &paid)
	if err != nil {
		return nil, classify(err)
	}
	if saleStatus == domain.SaleStatusCancelled {
		return nil, fmt.Errorf("%w: sale is cancelled", store.ErrInvalidState)
	}
	if refund.Amount.GreaterThan(paid) {
		return nil, fmt.Errorf("%w: refund exceeds paid amount", store.ErrInvalidInput)
	}

	refund.Status = domain.RefundStatusPending
	err = tx.QueryRowContext(ctx, `
		INSERT INTO refunds (refund_number, sale_id, amount, reason, status, requested_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, refund.RefundNumber, refund.SaleID, refund.Amount, refund.Reason, refund.Status, refund.RequestedBy, refund.CreatedAt).Scan(&refund.ID)
	if err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return &refund, nil
}

func (s *Store) ProcessRefund(ctx context.Context, refundID int64, approve bool, processedBy int64, at time.Time) (*domain.Refund, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	var refund domain.Refund
	err = tx.QueryRowContext(ctx, `
		SELECT id, refund_number, sale_id, amount, reason, status, requested_by, created_at
		FROM refunds
		WHERE id = $1 AND status = $2
		FOR UPDATE
	`, refundID, domain.RefundStatusPending).Scan(&refund.ID, &refund.RefundNumber, &refund.SaleID,
		&refund.Amount, &refund.Reason, &refund.Status, &refund.RequestedBy, &refund.CreatedAt)
	if err != nil {
		// Includes already-processed refunds: the pending row no longer exists.
		return nil, classify(err)
	}

	newStatus := domain.RefundStatusRejected
	if approve {
		newStatus = domain.RefundStatusCompleted

		var total, paid decimal.Decimal
		err = tx.QueryRowContext(ctx, `
			SELECT total, paid FROM sales WHERE id = $1 FOR UPDATE
		`, refund.SaleID).Scan(&total, &paid)
		if err != nil {
			return nil, classify(err)
		}

		newPaid := paid.Sub(refund.Amount)
		_, err = tx.ExecContext(ctx, `
			UPDATE sales
			SET paid = $2, due = $3, payment_status = $4, sale_status = $5
			WHERE id = $1
		`, refund.SaleID, newPaid, total.Sub(newPaid), domain.PaymentStatusFor(total, newPaid), domain.SaleStatusRefunded)
		if err != nil {
			return nil, classify(err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE refunds
		SET status = $2, processed_by = $3, processed_at = $4
		WHERE id = $1
	`, refundID, newStatus, processedBy, at)
	if err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}

	refund.Status = newStatus
	refund.ProcessedBy = &processedBy
	refund.ProcessedAt = &at
	return &refund, nil
}

func (s *Store) ListRefunds(ctx context.Context, saleID int64) ([]domain.Refund, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, refund_number, sale_id, amount, reason, status, requested_by, processed_by, created_at, processed_at
		FROM refunds
		WHERE $1 = 0 OR sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	refunds := make([]domain.Refund, 0, 8)
	for rows.Next() {
		var r domain.Refund
		if err := rows.Scan(&r.ID, &r.RefundNumber, &r.SaleID, &r.Amount, &r.Reason, &r.Status,
			&r.RequestedBy, &r.ProcessedBy, &r.CreatedAt, &r.ProcessedAt); err != nil {
			return nil, err
		}
		refunds = append(refunds, r)
	}
	return refunds, rows.Err()
}

// --- transfers ---

// CreateTransfer reserves stock at the source branch; nothing moves until the
// transfer is completed.
func (s *Store) CreateTransfer(ctx context.Context, transfer domain.StockTransfer) (*domain.StockTransfer, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if transfer.IMEI != "" {
		res, err := tx.ExecContext(ctx, `
			UPDATE product_imeis
			SET status = $1
			WHERE imei = $2 AND product_id = $3 AND branch_id = $4 AND status = $5
		`, domain.IMEIStatusReserved, transfer.IMEI, transfer.ProductID, transfer.FromBranchID, domain.IMEIStatusAvailable)
		if err != nil {
			return nil, classify(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("%w: imei %s", store.ErrIMEIUnavailable, transfer.IMEI)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE branch_stock
			SET reserved_quantity = reserved_quantity + $1, updated_at = now()
			WHERE branch_id = $2 AND product_id = $3 AND quantity - reserved_quantity >= $1
		`, transfer.Quantity, transfer.FromBranchID, transfer.ProductID)
		if err != nil {
			return nil, classify(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("%w: product %d at branch %d", store.ErrInsufficientStock, transfer.ProductID, transfer.FromBranchID)
		}
	}

	transfer.Status = domain.TransferStatusPending
	err = tx.QueryRowContext(ctx, `
		INSERT INTO stock_transfers (transfer_number, from_branch_id, to_branch_id, product_id, quantity, imei, status, requested_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, transfer.TransferNumber, transfer.FromBranchID, transfer.ToBranchID, transfer.ProductID,
		transfer.Quantity, transfer.IMEI, transfer.Status, transfer.RequestedBy, transfer.CreatedAt).Scan(&transfer.ID)
	if err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return &transfer, nil
}

func (s *Store) CompleteTransfer(ctx context.Context, id int64, processedBy int64, at time.Time) (*domain.StockTransfer, error) {
	return s.finishTransfer(ctx, id, processedBy, at, true)
}

func (s *Store) CancelTransfer(ctx context.Context, id int64, processedBy int64, at time.Time) (*domain.StockTransfer, error) {
	return s.finishTransfer(ctx, id, processedBy, at, false)
}

func (s *Store) finishTransfer(ctx context.Context, id int64, processedBy int64, at time.Time, complete bool) (*domain.StockTransfer, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	var transfer domain.StockTransfer
	err = tx.QueryRowContext(ctx, `
		SELECT id, transfer_number, from_branch_id, to_branch_id, product_id, quantity, imei, status, requested_by, created_at
		FROM stock_transfers
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&transfer.ID, &transfer.TransferNumber, &transfer.FromBranchID, &transfer.ToBranchID,
		&transfer.ProductID, &transfer.Quantity, &transfer.IMEI, &transfer.Status, &transfer.RequestedBy, &transfer.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	if transfer.Status != domain.TransferStatusPending {
		return nil, fmt.Errorf("%w: transfer is %s", store.ErrInvalidState, transfer.Status)
	}

	if transfer.IMEI != "" {
		if complete {
			_, err = tx.ExecContext(ctx, `
				UPDATE product_imeis
				SET branch_id = $1, status = $2
				WHERE imei = $3 AND status = $4
			`, transfer.ToBranchID, domain.IMEIStatusAvailable, transfer.IMEI, domain.IMEIStatusReserved)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE product_imeis
				SET status = $1
				WHERE imei = $2 AND status = $3
			`, domain.IMEIStatusAvailable, transfer.IMEI, domain.IMEIStatusReserved)
		}
		if err != nil {
			return nil, classify(err)
		}
	} else {
		if complete {
			_, err = tx.ExecContext(ctx, `
				UPDATE branch_stock
				SET quantity = quantity - $1, reserved_quantity = reserved_quantity - $1, updated_at = $4
				WHERE branch_id = $2 AND product_id = $3
			`, transfer.Quantity, transfer.FromBranchID, transfer.ProductID, at)
			if err != nil {
				return nil, classify(err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO branch_stock (branch_id, product_id, quantity, reserved_quantity, min_stock_level, updated_at)
				VALUES ($1, $2, $3, 0, 0, $4)
				ON CONFLICT (branch_id, product_id)
				DO UPDATE SET quantity = branch_stock.quantity + $3, updated_at = $4
			`, transfer.ToBranchID, transfer.ProductID, transfer.Quantity, at)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE branch_stock
				SET reserved_quantity = reserved_quantity - $1, updated_at = $4
				WHERE branch_id = $2 AND product_id = $3
			`, transfer.Quantity, transfer.FromBranchID, transfer.ProductID, at)
		}
		if err != nil {
			return nil, classify(err)
		}
	}

	newStatus := domain.TransferStatusCancelled
	if complete {
		newStatus = domain.TransferStatusCompleted
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE stock_transfers
		SET status = $2, processed_by = $3, processed_at = $4
		WHERE id = $1
	`, id, newStatus, processedBy, at)
	if err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}

	transfer.Status = newStatus
	transfer.ProcessedBy = &processedBy
	transfer.ProcessedAt = &at
	return &transfer, nil
}

func (s *Store) ListTransfers(ctx context.Context, branchID int64, status string, limit int) ([]domain.StockTransfer, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transfer_number, from_branch_id, to_branch_id, product_id, quantity, imei, status, requested_by, processed_by, created_at, processed_at
		FROM stock_transfers
		WHERE ($1 = 0 OR from_branch_id = $1 OR to_branch_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY id DESC
		LIMIT $3
	`, branchID, status, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	transfers := make([]domain.StockTransfer, 0, limit)
	for rows.Next() {
		var t domain.StockTransfer
		if err := rows.Scan(&t.ID, &t.TransferNumber, &t.FromBranchID, &t.ToBranchID, &t.ProductID,
			&t.Quantity, &t.IMEI, &t.Status, &t.RequestedBy, &t.ProcessedBy, &t.CreatedAt, &t.ProcessedAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// --- reports ---

func (s *Store) GetSalesSummary(ctx context.Context, branchID int64, from time.Time, to time.Time) (domain.SalesSummary, error) {
	summary := domain.SalesSummary{
		BranchID:      branchID,
		Date:          from.UTC().Format("2006-01-02"),
		GrossTotal:    decimal.Zero,
		TotalPaid:     decimal.Zero,
		TotalDue:      decimal.Zero,
		TotalRefunded: decimal.Zero,
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total), 0),
		       COALESCE(SUM(paid), 0),
		       COALESCE(SUM(due), 0),
		       COUNT(*) FILTER (WHERE sale_status = $4)
		FROM sales
		WHERE branch_id = $1 AND created_at >= $2 AND created_at < $3 AND sale_status <> $5
	`, branchID, from, to, domain.SaleStatusRefunded, domain.SaleStatusCancelled).Scan(
		&summary.SaleCount, &summary.GrossTotal, &summary.TotalPaid, &summary.TotalDue, &summary.RefundedCount)
	if err != nil {
		return domain.SalesSummary{}, classify(err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(r.amount), 0)
		FROM refunds r
		JOIN sales s ON s.id = r.sale_id
		WHERE s.branch_id = $1 AND r.status = $2 AND r.processed_at >= $3 AND r.processed_at < $4
	`, branchID, domain.RefundStatusCompleted, from, to).Scan(&summary.TotalRefunded)
	if err != nil {
		return domain.SalesSummary{}, classify(err)
	}

	return summary, nil
}

// --- audit log ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (branch_id, actor, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.BranchID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return classify(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID int64, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE $1 = 0 OR branch_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, branchID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.Actor, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password, full_name, role, branch_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, user.Username, user.Password, user.FullName, user.Role, user.BranchID, user.Active, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return nil, classify(err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, full_name, role, branch_id, active, created_at
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 32)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.ID, &u.Username, &u.Password, &u.FullName, &u.Role, &u.BranchID, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, full_name, role, branch_id, active, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.Password, &u.FullName, &u.Role, &u.BranchID, &u.Active, &u.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
