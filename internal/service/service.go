package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"ponselkita/backend/internal/cache"
	"ponselkita/backend/internal/domain"
	"ponselkita/backend/internal/store"
)

// ErrForbidden marks requests from an authenticated actor whose role or
// branch does not permit the operation.
var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	cache      cache.SummaryCache
	log        *logrus.Logger
	validate   *validator.Validate
	summaryTTL time.Duration
}

func New(repo store.Repository, summaryCache cache.SummaryCache, logger *logrus.Logger, summaryTTL time.Duration) *Service {
	if summaryCache == nil {
		summaryCache = cache.NoopSummaryCache{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	if summaryTTL <= 0 {
		summaryTTL = 5 * time.Minute
	}

	return &Service{
		repo:       repo,
		cache:      summaryCache,
		log:        logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		summaryTTL: summaryTTL,
	}
}

func (s *Service) policy(ctx context.Context) (domain.Actor, domain.AccessPolicy) {
	actor, _ := ActorFromContext(ctx)
	return actor, domain.PolicyFor(actor)
}

func (s *Service) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", store.ErrInvalidInput, err.Error())
	}
	return nil
}

// effectiveUserID resolves the acting user id for writes. Requests without an
// attached user (internal jobs, tooling) are recorded against the seeded
// system account.
func (s *Service) effectiveUserID(ctx context.Context, actor domain.Actor) (int64, error) {
	if actor.UserID > 0 {
		return actor.UserID, nil
	}
	sys, err := s.repo.GetUserByUsername(ctx, domain.SystemUsername)
	if err != nil {
		return 0, fmt.Errorf("resolve system user: %w", err)
	}
	return sys.ID, nil
}

func (s *Service) logAudit(ctx context.Context, branchID int64, action, entityType, entityID, detail string) {
	actor, _ := ActorFromContext(ctx)
	username := actor.Username
	if username == "" {
		username = domain.SystemUsername
	}
	entry := domain.AuditLog{
		BranchID:   branchID,
		Actor:      username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.log.WithError(err).WithField("action", action).Warn("audit log write failed")
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, branchID int64, limit int) ([]domain.AuditLog, error) {
	_, policy := s.policy(ctx)
	if !policy.IsAdmin() {
		if branchID == 0 {
			branchID = policy.BranchID
		}
		if !policy.CanAccessBranch(branchID) {
			return nil, fmt.Errorf("%w: branch %d", ErrForbidden, branchID)
		}
	}
	return s.repo.ListAuditLogs(ctx, branchID, limit)
}

// --- branches ---

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx)
}

func (s *Service) CreateBranch(ctx context.Context, req domain.BranchCreateRequest) (*domain.Branch, error) {
	_, policy := s.policy(ctx)
	if !policy.IsAdmin() {
		return nil, fmt.Errorf("%w: admin required", ErrForbidden)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	branch := domain.Branch{
		Code:      strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateBranch(ctx, branch)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, created.ID, "branch_create", "branch", created.Code, created.Name)
	return created, nil
}

// --- catalog ---

func (s *Service) ListProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, query, limit)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	_, policy := s.policy(ctx)
	if !policy.CanManageCatalog() {
		return nil, fmt.Errorf("%w: catalog management requires admin or manager", ErrForbidden)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.RetailPrice.Sign() <= 0 {
		return nil, fmt.Errorf("%w: retail_price must be positive", store.ErrInvalidInput)
	}
	if req.BasePrice.Sign() < 0 || req.WholesalePrice.Sign() < 0 {
		return nil, fmt.Errorf("%w: prices cannot be negative", store.ErrInvalidInput)
	}

	product := domain.Product{
		SKU:            strings.ToUpper(strings.TrimSpace(req.SKU)),
		Name:           strings.TrimSpace(req.Name),
		Brand:          strings.TrimSpace(req.Brand),
		Category:       strings.TrimSpace(req.Category),
		InventoryType:  req.InventoryType,
		BasePrice:      req.BasePrice,
		WholesalePrice: req.WholesalePrice,
		RetailPrice:    req.RetailPrice,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, policy.BranchID, "product_create", "product", created.SKU, created.Name)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error) {
	_, policy := s.policy(ctx)
	if !policy.CanManageCatalog() {
		return nil, fmt.Errorf("%w: catalog management requires admin or manager", ErrForbidden)
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.Brand != nil {
		existing.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Category != nil {
		existing.Category = strings.TrimSpace(*req.Category)
	}
	if req.BasePrice != nil {
		existing.BasePrice = *req.BasePrice
	}
	if req.WholesalePrice != nil {
		existing.WholesalePrice = *req.WholesalePrice
	}
	if req.RetailPrice != nil {
		if req.RetailPrice.Sign() <= 0 {
			return nil, fmt.Errorf("%w: retail_price must be positive", store.ErrInvalidInput)
		}
		existing.RetailPrice = *req.RetailPrice
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if existing.Name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", store.ErrInvalidInput)
	}

	updated, err := s.repo.UpdateProduct(ctx, *existing)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, policy.BranchID, "product_update", "product", updated.SKU, updated.Name)
	return updated, nil
}

// --- customers ---

func (s *Service) ListCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, query, limit)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	customer := domain.Customer{
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: time.Now().UTC(),
	}
	return s.repo.CreateCustomer(ctx, customer)
}

// --- users ---

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	_, policy := s.policy(ctx)
	if !policy.IsAdmin() {
		return nil, fmt.Errorf("%w: admin required", ErrForbidden)
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (*domain.UserAccount, error) {
	_, policy := s.policy(ctx)
	if !policy.IsAdmin() {
		return nil, fmt.Errorf("%w: admin required", ErrForbidden)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetBranchByID(ctx, req.BranchID); err != nil {
		return nil, fmt.Errorf("%w: branch %d", store.ErrForeignKey, req.BranchID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := domain.UserAccount{
		Username:  strings.ToLower(strings.TrimSpace(req.Username)),
		Password:  string(hash),
		FullName:  strings.TrimSpace(req.FullName),
		Role:      req.Role,
		BranchID:  req.BranchID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	created.Password = ""
	s.logAudit(ctx, created.BranchID, "user_create", "user", created.Username, created.Role)
	return created, nil
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
