package httpapi

import (
	"net/http"
	"strings"
	"time"

	"ponselkita/backend/internal/domain"
)

func (a *API) handleBranches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		branches, err := a.service.ListBranches(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "branches", branches)
	case http.MethodPost:
		var req domain.BranchCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		branch, err := a.service.CreateBranch(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "branch created", branch)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query().Get("q")
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
		products, err := a.service.ListProducts(r.Context(), query, limit)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "products", products)
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "product created", product)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/products/"), "/")
	id, ok := parseID(tail)
	if !ok {
		writeFailure(w, http.StatusBadRequest, "product id required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "product", product)
	case http.MethodPatch:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		product, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "product updated", product)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query().Get("q")
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
		customers, err := a.service.ListCustomers(r.Context(), query, limit)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "customers", customers)
	case http.MethodPost:
		var req domain.CustomerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		customer, err := a.service.CreateCustomer(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "customer created", customer)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := a.service.ListUsers(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "users", users)
	case http.MethodPost:
		var req domain.UserCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.service.CreateUser(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "user created", user)
	default:
		writeMethodNotAllowed(w)
	}
}

// --- sales ---

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := domain.SaleListFilter{
			Status:        q.Get("status"),
			PaymentStatus: q.Get("payment_status"),
			Limit:         parsePositiveLimit(q.Get("limit"), 50, 200),
		}
		if id, ok := parseID(q.Get("branch_id")); ok {
			filter.BranchID = id
		}
		if id, ok := parseID(q.Get("customer_id")); ok {
			filter.CustomerID = id
		}
		if id, ok := parseID(q.Get("offset")); ok {
			filter.Offset = int(id)
		}
		if raw := q.Get("start_date"); raw != "" {
			day, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeFailure(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
				return
			}
			filter.StartDate = day
		}
		if raw := q.Get("end_date"); raw != "" {
			day, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeFailure(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
				return
			}
			// end_date is inclusive at day granularity.
			filter.EndDate = day.AddDate(0, 0, 1)
		}
		sales, err := a.service.ListSales(r.Context(), filter)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "sales", sales)
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		sale, err := a.service.CreateSale(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "sale created", sale)
	default:
		writeMethodNotAllowed(w)
	}
}

// handleSaleActions routes /api/v1/sales/{ref} and its sub-resources. The ref
// segment is either a numeric sale id or an invoice number.
func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sales/"), "/")
	if tail == "" {
		writeFailure(w, http.StatusBadRequest, "sale reference required")
		return
	}

	ref := tail
	action := ""
	if idx := strings.IndexByte(tail, '/'); idx > 0 {
		ref = tail[:idx]
		action = strings.Trim(tail[idx+1:], "/")
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		sale, err := a.service.GetSale(r.Context(), ref)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "sale", sale)
	case "payments":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.PaymentCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		sale, err := a.service.AddPayment(r.Context(), ref, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "payment recorded", sale)
	case "cancel":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.SaleCancelRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		sale, err := a.service.CancelSale(r.Context(), ref, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "sale cancelled", sale)
	case "refunds":
		a.handleSaleRefunds(w, r, ref)
	default:
		writeFailure(w, http.StatusBadRequest, "unknown sale action")
	}
}

func (a *API) handleSaleRefunds(w http.ResponseWriter, r *http.Request, ref string) {
	switch r.Method {
	case http.MethodGet:
		sale, err := a.service.GetSale(r.Context(), ref)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		refunds, err := a.service.ListRefunds(r.Context(), sale.ID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "refunds", refunds)
	case http.MethodPost:
		var req domain.RefundCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		refund, err := a.service.CreateRefund(r.Context(), ref, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "refund requested", refund)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleRefundActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/refunds/"), "/")
	if !strings.HasSuffix(tail, "/process") {
		writeFailure(w, http.StatusBadRequest, "unknown refund action")
		return
	}
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}
	id, ok := parseID(strings.TrimSuffix(tail, "/process"))
	if !ok {
		writeFailure(w, http.StatusBadRequest, "refund id required")
		return
	}

	var req domain.RefundProcessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	refund, err := a.service.ProcessRefund(r.Context(), id, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "refund "+refund.Status, refund)
}

// --- inventory ---

func (a *API) handleStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	branchID, _ := parseID(r.URL.Query().Get("branch_id"))
	stocks, err := a.service.ListStock(r.Context(), branchID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "stock", stocks)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	branchID, _ := parseID(r.URL.Query().Get("branch_id"))
	stocks, err := a.service.ListLowStock(r.Context(), branchID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "low stock", stocks)
}

func (a *API) handleStockReceive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.StockReceiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	stock, err := a.service.ReceiveStock(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "stock received", stock)
}

func (a *API) handleIMEIs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		branchID, _ := parseID(r.URL.Query().Get("branch_id"))
		productID, _ := parseID(r.URL.Query().Get("product_id"))
		status := r.URL.Query().Get("status")
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 200, 1000)
		records, err := a.service.ListIMEIs(r.Context(), branchID, productID, status, limit)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "imeis", records)
	case http.MethodPost:
		var req domain.IMEIRegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		rec, err := a.service.RegisterIMEI(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "imei registered", rec)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleTransfers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		branchID, _ := parseID(r.URL.Query().Get("branch_id"))
		status := r.URL.Query().Get("status")
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
		transfers, err := a.service.ListTransfers(r.Context(), branchID, status, limit)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "transfers", transfers)
	case http.MethodPost:
		var req domain.TransferCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		transfer, err := a.service.CreateTransfer(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "transfer created", transfer)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleTransferActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/inventory/transfers/"), "/")

	var complete bool
	switch {
	case strings.HasSuffix(tail, "/complete"):
		complete = true
		tail = strings.TrimSuffix(tail, "/complete")
	case strings.HasSuffix(tail, "/cancel"):
		tail = strings.TrimSuffix(tail, "/cancel")
	default:
		writeFailure(w, http.StatusBadRequest, "unknown transfer action")
		return
	}

	id, ok := parseID(tail)
	if !ok {
		writeFailure(w, http.StatusBadRequest, "transfer id required")
		return
	}

	var transfer *domain.StockTransfer
	var err error
	if complete {
		transfer, err = a.service.CompleteTransfer(r.Context(), id)
	} else {
		transfer, err = a.service.CancelTransfer(r.Context(), id)
	}
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "transfer "+transfer.Status, transfer)
}

// --- reports ---

func (a *API) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	branchID, _ := parseID(r.URL.Query().Get("branch_id"))
	date := r.URL.Query().Get("date")
	summary, err := a.service.SalesSummary(r.Context(), branchID, date)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "sales summary", summary)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	branchID, _ := parseID(r.URL.Query().Get("branch_id"))
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), branchID, limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "audit logs", logs)
}
