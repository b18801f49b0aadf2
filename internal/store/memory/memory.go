package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"ponselkita/backend/internal/domain"
	"ponselkita/backend/internal/store"
)

type stockKey struct {
	branchID  int64
	productID int64
}

// Store is a mutex-guarded in-memory Repository used for local development
// and tests. Multi-step mutations validate everything first and only then
// apply changes, so a failing step never leaves partial effects behind.
type Store struct {
	mu sync.RWMutex

	branches  map[int64]domain.Branch
	products  map[int64]domain.Product
	customers map[int64]domain.Customer
	stock     map[stockKey]domain.BranchStock
	imeis     map[string]domain.IMEIRecord
	sales     map[int64]*domain.Sale
	byInvoice map[string]int64
	refunds   map[int64]domain.Refund
	transfers map[int64]domain.StockTransfer
	auditLogs []domain.AuditLog
	users     map[string]domain.UserAccount

	seq map[string]int64
}

func New() *Store {
	return &Store{
		branches:  make(map[int64]domain.Branch),
		products:  make(map[int64]domain.Product),
		customers: make(map[int64]domain.Customer),
		stock:     make(map[stockKey]domain.BranchStock),
		imeis:     make(map[string]domain.IMEIRecord),
		sales:     make(map[int64]*domain.Sale),
		byInvoice: make(map[string]int64),
		refunds:   make(map[int64]domain.Refund),
		transfers: make(map[int64]domain.StockTransfer),
		auditLogs: make([]domain.AuditLog, 0, 128),
		users:     make(map[string]domain.UserAccount),
		seq:       make(map[string]int64),
	}
}

// NewSeeded returns a store pre-populated with two branches, a small phone and
// accessory catalog, per-branch stock, registered IMEIs and dev user accounts.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, b := range []domain.Branch{
		{ID: 1, Code: "JKT01", Name: "Jakarta Pusat", Phone: "021-5550101", Active: true, CreatedAt: now},
		{ID: 2, Code: "SBY02", Name: "Surabaya Timur", Phone: "031-5550202", Active: true, CreatedAt: now},
	} {
		s.branches[b.ID] = b
	}
	s.seq["branch"] = 2

	price := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
	products := []domain.Product{
		{ID: 1, SKU: "PHN-IP15-128", Name: "iPhone 15 128GB", Brand: "Apple", Category: "phone", InventoryType: domain.InventoryTypeUnique, BasePrice: price(11500000), WholesalePrice: price(11900000), RetailPrice: price(12499000), Active: true, CreatedAt: now},
		{ID: 2, SKU: "PHN-S24-256", Name: "Galaxy S24 256GB", Brand: "Samsung", Category: "phone", InventoryType: domain.InventoryTypeUnique, BasePrice: price(9800000), WholesalePrice: price(10300000), RetailPrice: price(10899000), Active: true, CreatedAt: now},
		{ID: 3, SKU: "PHN-RN13-128", Name: "Redmi Note 13 128GB", Brand: "Xiaomi", Category: "phone", InventoryType: domain.InventoryTypeUnique, BasePrice: price(2450000), WholesalePrice: price(2600000), RetailPrice: price(2799000), Active: true, CreatedAt: now},
		{ID: 4, SKU: "ACC-CASE-CLR", Name: "Clear Case Universal", Category: "accessory", InventoryType: domain.InventoryTypeQuantity, BasePrice: price(25000), WholesalePrice: price(35000), RetailPrice: price(49000), Active: true, CreatedAt: now},
		{ID: 5, SKU: "ACC-TG-9H", Name: "Tempered Glass 9H", Category: "accessory", InventoryType: domain.InventoryTypeQuantity, BasePrice: price(8000), WholesalePrice: price(12000), RetailPrice: price(25000), Active: true, CreatedAt: now},
		{ID: 6, SKU: "ACC-CHG-20W", Name: "Charger 20W USB-C", Category: "accessory", InventoryType: domain.InventoryTypeQuantity, BasePrice: price(95000), WholesalePrice: price(120000), RetailPrice: price(159000), Active: true, CreatedAt: now},
		{ID: 7, SKU: "ACC-TWS-BT", Name: "TWS Earbuds Basic", Category: "accessory", InventoryType: domain.InventoryTypeQuantity, BasePrice: price(135000), WholesalePrice: price(165000), RetailPrice: price(229000), Active: true, CreatedAt: now},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	s.seq["product"] = int64(len(products))

	for _, p := range products {
		if p.InventoryType != domain.InventoryTypeQuantity {
			continue
		}
		s.stock[stockKey{1, p.ID}] = domain.BranchStock{BranchID: 1, ProductID: p.ID, Quantity: 50, MinStockLevel: 5, UpdatedAt: now}
		s.stock[stockKey{2, p.ID}] = domain.BranchStock{BranchID: 2, ProductID: p.ID, Quantity: 30, MinStockLevel: 5, UpdatedAt: now}
	}

	imeiSeeds := []struct {
		imei      string
		productID int64
		branchID  int64
	}{
		{"356789104563217", 1, 1},
		{"356789104563225", 1, 1},
		{"356789104563233", 1, 2},
		{"352094117706581", 2, 1},
		{"352094117706599", 2, 2},
		{"861536030196001", 3, 1},
		{"861536030196019", 3, 1},
		{"861536030196027", 3, 2},
	}
	for i, seed := range imeiSeeds {
		s.imeis[seed.imei] = domain.IMEIRecord{
			ID:        int64(i + 1),
			IMEI:      seed.imei,
			ProductID: seed.productID,
			BranchID:  seed.branchID,
			Status:    domain.IMEIStatusAvailable,
			CreatedAt: now,
		}
	}
	s.seq["imei"] = int64(len(imeiSeeds))

	s.customers[1] = domain.Customer{ID: 1, Name: "Walk-in Reseller", Phone: "0812-0000-1111", CreatedAt: now}
	s.seq["customer"] = 1

	s.users = seedUsers()
	s.seq["user"] = int64(len(s.users))

	return s
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; when
// unset, hardcoded dev defaults are used with a warning. The system account
// is the effective actor for unattended operations and can never log in.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		logrus.Warn("memory store: using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for i, u := range []struct {
		username string
		password string
		fullName string
		role     string
		branchID int64
		active   bool
	}{
		{"admin", adminPwd, "Administrator", domain.RoleAdmin, 0, true},
		{"manager", cashierPwd, "Branch Manager JKT", domain.RoleManager, 1, true},
		{"cashier", cashierPwd, "Kasir JKT 1", domain.RoleCashier, 1, true},
		{"cashier2", cashierPwd, "Kasir SBY 1", domain.RoleCashier, 2, true},
		{domain.SystemUsername, "", "Background Jobs", domain.RoleSystem, 0, false},
	} {
		account := domain.UserAccount{
			ID:        int64(i + 1),
			Username:  u.username,
			FullName:  u.fullName,
			Role:      u.role,
			BranchID:  u.branchID,
			Active:    u.active,
			CreatedAt: now,
		}
		if u.password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
			if err != nil {
				logrus.Fatalf("memory store: failed to hash seed password for %s: %v", u.username, err)
			}
			account.Password = string(hash)
		}
		users[u.username] = account
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) nextID(kind string) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

// --- branches ---

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.Branch) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *Store) GetBranchByID(_ context.Context, id int64) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.branches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *Store) CreateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.branches {
		if strings.EqualFold(existing.Code, branch.Code) {
			return nil, fmt.Errorf("%w: branch code %s", store.ErrDuplicate, branch.Code)
		}
	}
	branch.ID = s.nextID("branch")
	s.branches[branch.ID] = branch
	return &branch, nil
}

// --- products ---

func (s *Store) ListProducts(_ context.Context, query string, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.SKU), query) &&
			!strings.Contains(strings.ToLower(p.Brand), query) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int { return int(a.ID - b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if strings.EqualFold(p.SKU, sku) {
			out := p
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if strings.EqualFold(existing.SKU, product.SKU) {
			return nil, fmt.Errorf("%w: sku %s", store.ErrDuplicate, product.SKU)
		}
	}
	product.ID = s.nextID("product")
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[product.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	return &product, nil
}

// --- customers ---

func (s *Store) ListCustomers(_ context.Context, query string, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if query != "" &&
			!strings.Contains(strings.ToLower(c.Name), query) &&
			!strings.Contains(c.Phone, query) {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Customer) int { return int(a.ID - b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.ID = s.nextID("customer")
	s.customers[customer.ID] = customer
	return &customer, nil
}

// --- stock ledger ---

func (s *Store) ListBranchStock(_ context.Context, branchID int64) ([]domain.BranchStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectStock(branchID, false), nil
}

func (s *Store) ListLowStock(_ context.Context, branchID int64) ([]domain.BranchStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectStock(branchID, true), nil
}

func (s *Store) collectStock(branchID int64, lowOnly bool) []domain.BranchStock {
	out := make([]domain.BranchStock, 0, len(s.stock))
	for key, st := range s.stock {
		if key.branchID != branchID {
			continue
		}
		if lowOnly && st.Quantity > st.MinStockLevel {
			continue
		}
		if p, ok := s.products[st.ProductID]; ok {
			st.ProductSKU = p.SKU
			st.ProductName = p.Name
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b domain.BranchStock) int { return int(a.ProductID - b.ProductID) })
	return out
}

func (s *Store) GetBranchStock(_ context.Context, branchID int64, productID int64) (*domain.BranchStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stock[stockKey{branchID, productID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) ReceiveStock(_ context.Context, branchID int64, productID int64, qty int, minStockLevel *int) (*domain.BranchStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[branchID]; !ok {
		return nil, fmt.Errorf("%w: branch %d", store.ErrForeignKey, branchID)
	}
	if _, ok := s.products[productID]; !ok {
		return nil, fmt.Errorf("%w: product %d", store.ErrForeignKey, productID)
	}

	key := stockKey{branchID, productID}
	st, ok := s.stock[key]
	if !ok {
		st = domain.BranchStock{BranchID: branchID, ProductID: productID}
	}
	st.Quantity += qty
	if minStockLevel != nil {
		st.MinStockLevel = *minStockLevel
	}
	st.UpdatedAt = time.Now().UTC()
	s.stock[key] = st
	return &st, nil
}

// --- imei registry ---

func (s *Store) RegisterIMEI(_ context.Context, rec domain.IMEIRecord) (*domain.IMEIRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[rec.BranchID]; !ok {
		return nil, fmt.Errorf("%w: branch %d", store.ErrForeignKey, rec.BranchID)
	}
	if _, ok := s.products[rec.ProductID]; !ok {
		return nil, fmt.Errorf("%w: product %d", store.ErrForeignKey, rec.ProductID)
	}
	if _, exists := s.imeis[rec.IMEI]; exists {
		return nil, fmt.Errorf("%w: imei %s", store.ErrDuplicate, rec.IMEI)
	}

	rec.ID = s.nextID("imei")
	rec.Status = domain.IMEIStatusAvailable
	s.imeis[rec.IMEI] = rec
	return &rec, nil
}

func (s *Store) GetIMEI(_ context.Context, imei string) (*domain.IMEIRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.imeis[imei]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) ListIMEIs(_ context.Context, branchID int64, productID int64, status string, limit int) ([]domain.IMEIRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.IMEIRecord, 0, len(s.imeis))
	for _, rec := range s.imeis {
		if branchID != 0 && rec.BranchID != branchID {
			continue
		}
		if productID != 0 && rec.ProductID != productID {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.IMEIRecord) int { return int(a.ID - b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- sales ---

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, payment *domain.Payment) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[sale.BranchID]; !ok {
		return nil, fmt.Errorf("%w: branch %d", store.ErrForeignKey, sale.BranchID)
	}
	if sale.CustomerID != nil {
		if _, ok := s.customers[*sale.CustomerID]; !ok {
			return nil, fmt.Errorf("%w: customer %d", store.ErrForeignKey, *sale.CustomerID)
		}
	}
	if _, exists := s.byInvoice[sale.InvoiceNumber]; exists {
		return nil, fmt.Errorf("%w: invoice %s", store.ErrDuplicate, sale.InvoiceNumber)
	}

	// Validate every line before touching stock so a failing line leaves the
	// ledger untouched.
	for _, item := range sale.Items {
		product, ok := s.products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", store.ErrForeignKey, item.ProductID)
		}
		switch product.InventoryType {
		case domain.InventoryTypeUnique:
			rec, ok := s.imeis[item.IMEI]
			if !ok || rec.ProductID != item.ProductID || rec.BranchID != sale.BranchID || rec.Status != domain.IMEIStatusAvailable {
				return nil, fmt.Errorf("%w: imei %s", store.ErrIMEIUnavailable, item.IMEI)
			}
		default:
			st, ok := s.stock[stockKey{sale.BranchID, item.ProductID}]
			if !ok || st.Available() < item.Quantity {
				return nil, fmt.Errorf("%w: product %d at branch %d", store.ErrInsufficientStock, item.ProductID, sale.BranchID)
			}
		}
	}

	sale.ID = s.nextID("sale")
	now := time.Now().UTC()
	for i := range sale.Items {
		sale.Items[i].ID = s.nextID("sale_item")
		sale.Items[i].SaleID = sale.ID
	}

	for _, item := range sale.Items {
		product := s.products[item.ProductID]
		switch product.InventoryType {
		case domain.InventoryTypeUnique:
			rec := s.imeis[item.IMEI]
			saleID := sale.ID
			rec.Status = domain.IMEIStatusSold
			rec.SaleID = &saleID
			s.imeis[item.IMEI] = rec
		default:
			key := stockKey{sale.BranchID, item.ProductID}
			st := s.stock[key]
			st.Quantity -= item.Quantity
			st.UpdatedAt = now
			s.stock[key] = st
		}
	}

	if payment != nil {
		p := *payment
		p.ID = s.nextID("payment")
		p.SaleID = sale.ID
		p.CreatedAt = now
		sale.Payments = append(sale.Payments, p)
	}

	stored := sale
	s.sales[sale.ID] = &stored
	s.byInvoice[sale.InvoiceNumber] = sale.ID
	return copySale(&stored), nil
}

func (s *Store) GetSaleByID(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copySale(sale), nil
}

func (s *Store) GetSaleByInvoice(_ context.Context, invoiceNumber string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byInvoice[invoiceNumber]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copySale(s.sales[id]), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleListFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.BranchID != 0 && sale.BranchID != filter.BranchID {
			continue
		}
		if filter.CustomerID != 0 && (sale.CustomerID == nil || *sale.CustomerID != filter.CustomerID) {
			continue
		}
		if filter.Status != "" && sale.SaleStatus != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && sale.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if !filter.StartDate.IsZero() && sale.CreatedAt.Before(filter.StartDate) {
			continue
		}
		if !filter.EndDate.IsZero() && !sale.CreatedAt.Before(filter.EndDate) {
			continue
		}
		out = append(out, *copySale(sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int { return int(b.ID - a.ID) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.Sale{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) AddPayment(_ context.Context, saleID int64, payment domain.Payment) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.SaleStatus != domain.SaleStatusCompleted {
		return nil, fmt.Errorf("%w: sale is %s", store.ErrInvalidState, sale.SaleStatus)
	}
	payment.ID = s.nextID("payment")
	payment.SaleID = saleID
	payment.CreatedAt = time.Now().UTC()
	sale.Payments = append(sale.Payments, payment)

	sale.Paid = sale.Paid.Add(payment.Amount)
	sale.Due = sale.Total.Sub(sale.Paid)
	if sale.Due.Sign() < 0 {
		sale.Due = decimal.Zero
	}
	sale.PaymentStatus = domain.PaymentStatusFor(sale.Total, sale.Paid)
	return copySale(sale), nil
}

func (s *Store) CancelSale(_ context.Context, saleID int64, reason string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.SaleStatus != domain.SaleStatusCompleted {
		return nil, fmt.Errorf("%w: sale is %s", store.ErrInvalidState, sale.SaleStatus)
	}

	for _, item := range sale.Items {
		product := s.products[item.ProductID]
		switch product.InventoryType {
		case domain.InventoryTypeUnique:
			rec := s.imeis[item.IMEI]
			rec.Status = domain.IMEIStatusAvailable
			rec.SaleID = nil
			s.imeis[item.IMEI] = rec
		default:
			key := stockKey{sale.BranchID, item.ProductID}
			st, ok := s.stock[key]
			if !ok {
				st = domain.BranchStock{BranchID: sale.BranchID, ProductID: item.ProductID}
			}
			st.Quantity += item.Quantity
			st.UpdatedAt = at
			s.stock[key] = st
		}
	}

	sale.SaleStatus = domain.SaleStatusCancelled
	if sale.Notes != "" {
		sale.Notes += " | "
	}
	sale.Notes += "cancelled: " + reason
	return copySale(sale), nil
}

// --- refunds ---

func (s *Store) CreateRefund(_ context.Context, refund domain.Refund) (*domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[refund.SaleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.SaleStatus == domain.SaleStatusCancelled {
		return nil, fmt.Errorf("%w: sale is cancelled", store.ErrInvalidState)
	}
	if refund.Amount.GreaterThan(sale.Paid) {
		return nil, fmt.Errorf("%w: refund exceeds paid amount", store.ErrInvalidInput)
	}

	refund.ID = s.nextID("refund")
	refund.Status = domain.RefundStatusPending
	s.refunds[refund.ID] = refund
	return &refund, nil
}

func (s *Store) ProcessRefund(_ context.Context, refundID int64, approve bool, processedBy int64, at time.Time) (*domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refund, ok := s.refunds[refundID]
	if !ok || refund.Status != domain.RefundStatusPending {
		return nil, store.ErrNotFound
	}

	refund.ProcessedBy = &processedBy
	refund.ProcessedAt = &at

	if !approve {
		refund.Status = domain.RefundStatusRejected
		s.refunds[refundID] = refund
		return &refund, nil
	}

	sale := s.sales[refund.SaleID]
	sale.Paid = sale.Paid.Sub(refund.Amount)
	sale.Due = sale.Total.Sub(sale.Paid)
	sale.PaymentStatus = domain.PaymentStatusFor(sale.Total, sale.Paid)
	sale.SaleStatus = domain.SaleStatusRefunded

	refund.Status = domain.RefundStatusCompleted
	s.refunds[refundID] = refund
	return &refund, nil
}

func (s *Store) ListRefunds(_ context.Context, saleID int64) ([]domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Refund, 0, 4)
	for _, r := range s.refunds {
		if saleID != 0 && r.SaleID != saleID {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.Refund) int { return int(a.ID - b.ID) })
	return out, nil
}

// --- transfers ---

func (s *Store) CreateTransfer(_ context.Context, transfer domain.StockTransfer) (*domain.StockTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, branchID := range []int64{transfer.FromBranchID, transfer.ToBranchID} {
		if _, ok := s.branches[branchID]; !ok {
			return nil, fmt.Errorf("%w: branch %d", store.ErrForeignKey, branchID)
		}
	}
	product, ok := s.products[transfer.ProductID]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", store.ErrForeignKey, transfer.ProductID)
	}

	// Pending transfers hold a reservation; nothing moves until completion.
	if product.InventoryType == domain.InventoryTypeUnique {
		rec, ok := s.imeis[transfer.IMEI]
		if !ok || rec.ProductID != transfer.ProductID || rec.BranchID != transfer.FromBranchID || rec.Status != domain.IMEIStatusAvailable {
			return nil, fmt.Errorf("%w: imei %s", store.ErrIMEIUnavailable, transfer.IMEI)
		}
		rec.Status = domain.IMEIStatusReserved
		s.imeis[transfer.IMEI] = rec
	} else {
		key := stockKey{transfer.FromBranchID, transfer.ProductID}
		st, ok := s.stock[key]
		if !ok || st.Available() < transfer.Quantity {
			return nil, fmt.Errorf("%w: product %d at branch %d", store.ErrInsufficientStock, transfer.ProductID, transfer.FromBranchID)
		}
		st.ReservedQuantity += transfer.Quantity
		st.UpdatedAt = time.Now().UTC()
		s.stock[key] = st
	}

	transfer.ID = s.nextID("transfer")
	transfer.Status = domain.TransferStatusPending
	s.transfers[transfer.ID] = transfer
	return &transfer, nil
}

func (s *Store) CompleteTransfer(_ context.Context, id int64, processedBy int64, at time.Time) (*domain.StockTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, ok := s.transfers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if transfer.Status != domain.TransferStatusPending {
		return nil, fmt.Errorf("%w: transfer is %s", store.ErrInvalidState, transfer.Status)
	}

	product := s.products[transfer.ProductID]
	if product.InventoryType == domain.InventoryTypeUnique {
		rec := s.imeis[transfer.IMEI]
		rec.BranchID = transfer.ToBranchID
		rec.Status = domain.IMEIStatusAvailable
		s.imeis[transfer.IMEI] = rec
	} else {
		src := s.stock[stockKey{transfer.FromBranchID, transfer.ProductID}]
		src.Quantity -= transfer.Quantity
		src.ReservedQuantity -= transfer.Quantity
		src.UpdatedAt = at
		s.stock[stockKey{transfer.FromBranchID, transfer.ProductID}] = src

		dstKey := stockKey{transfer.ToBranchID, transfer.ProductID}
		dst, ok := s.stock[dstKey]
		if !ok {
			dst = domain.BranchStock{BranchID: transfer.ToBranchID, ProductID: transfer.ProductID}
		}
		dst.Quantity += transfer.Quantity
		dst.UpdatedAt = at
		s.stock[dstKey] = dst
	}

	transfer.Status = domain.TransferStatusCompleted
	transfer.ProcessedBy = &processedBy
	transfer.ProcessedAt = &at
	s.transfers[id] = transfer
	return &transfer, nil
}

func (s *Store) CancelTransfer(_ context.Context, id int64, processedBy int64, at time.Time) (*domain.StockTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, ok := s.transfers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if transfer.Status != domain.TransferStatusPending {
		return nil, fmt.Errorf("%w: transfer is %s", store.ErrInvalidState, transfer.Status)
	}

	product := s.products[transfer.ProductID]
	if product.InventoryType == domain.InventoryTypeUnique {
		rec := s.imeis[transfer.IMEI]
		rec.Status = domain.IMEIStatusAvailable
		s.imeis[transfer.IMEI] = rec
	} else {
		key := stockKey{transfer.FromBranchID, transfer.ProductID}
		st := s.stock[key]
		st.ReservedQuantity -= transfer.Quantity
		st.UpdatedAt = at
		s.stock[key] = st
	}

	transfer.Status = domain.TransferStatusCancelled
	transfer.ProcessedBy = &processedBy
	transfer.ProcessedAt = &at
	s.transfers[id] = transfer
	return &transfer, nil
}

func (s *Store) ListTransfers(_ context.Context, branchID int64, status string, limit int) ([]domain.StockTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockTransfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		if branchID != 0 && t.FromBranchID != branchID && t.ToBranchID != branchID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b domain.StockTransfer) int { return int(b.ID - a.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- reports ---

func (s *Store) GetSalesSummary(_ context.Context, branchID int64, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{
		BranchID:      branchID,
		Date:          from.UTC().Format("2006-01-02"),
		GrossTotal:    decimal.Zero,
		TotalPaid:     decimal.Zero,
		TotalDue:      decimal.Zero,
		TotalRefunded: decimal.Zero,
	}

	for _, sale := range s.sales {
		if sale.BranchID != branchID || sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		if sale.SaleStatus == domain.SaleStatusCancelled {
			continue
		}
		summary.SaleCount++
		summary.GrossTotal = summary.GrossTotal.Add(sale.Total)
		summary.TotalPaid = summary.TotalPaid.Add(sale.Paid)
		summary.TotalDue = summary.TotalDue.Add(sale.Due)
		if sale.SaleStatus == domain.SaleStatusRefunded {
			summary.RefundedCount++
		}
	}
	for _, refund := range s.refunds {
		if refund.Status != domain.RefundStatusCompleted || refund.ProcessedAt == nil {
			continue
		}
		sale, ok := s.sales[refund.SaleID]
		if !ok || sale.BranchID != branchID {
			continue
		}
		if refund.ProcessedAt.Before(from) || !refund.ProcessedAt.Before(to) {
			continue
		}
		summary.TotalRefunded = summary.TotalRefunded.Add(refund.Amount)
	}
	return summary, nil
}

// --- audit log ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextID("audit")
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID int64, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, len(s.auditLogs))
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if branchID != 0 && entry.BranchID != branchID {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if _, exists := s.users[username]; exists {
		return nil, fmt.Errorf("%w: username %s", store.ErrDuplicate, username)
	}
	user.Username = username
	user.ID = s.nextID("user")
	s.users[username] = user
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	u, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.users[username] = u
	return nil
}

func copySale(sale *domain.Sale) *domain.Sale {
	out := *sale
	out.Items = slices.Clone(sale.Items)
	out.Payments = slices.Clone(sale.Payments)
	return &out
}
