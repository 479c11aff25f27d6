package order

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shopapi/internal/domain"
	"shopapi/internal/gateway"
	orderrepo "shopapi/internal/repository/order"
	paymentrepo "shopapi/internal/repository/payment"
)

type stubOrderRepo struct {
	createErrs   []error
	createCalls  int
	created      []orderrepo.CreateInput
	order        *domain.Order
	getErr       error
	deleted      []int64
	deleteErr    error
	statusUpdate *orderrepo.StatusUpdate
	payStatus    string
	listOrders   []domain.Order
	listTotal    int
	lastFilter   orderrepo.ListFilter
	stats        *orderrepo.Stats
}

func (s *stubOrderRepo) Create(_ context.Context, in orderrepo.CreateInput) (*domain.Order, error) {
	idx := s.createCalls
	s.createCalls++
	s.created = append(s.created, in)
	if idx < len(s.createErrs) && s.createErrs[idx] != nil {
		return nil, s.createErrs[idx]
	}
	return &domain.Order{ID: 7, OrderNumber: in.OrderNumber, UserID: in.UserID, TotalAmount: in.TotalAmount}, nil
}

func (s *stubOrderRepo) GetByID(_ context.Context, _ int64) (*domain.Order, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	cp := *s.order
	return &cp, nil
}

func (s *stubOrderRepo) Items(_ context.Context, _ int64) ([]domain.OrderItem, error) {
	return s.order.Items, nil
}

func (s *stubOrderRepo) List(_ context.Context, f orderrepo.ListFilter) ([]domain.Order, int, error) {
	s.lastFilter = f
	return s.listOrders, s.listTotal, nil
}

func (s *stubOrderRepo) UpdateStatus(_ context.Context, _ int64, in orderrepo.StatusUpdate) error {
	s.statusUpdate = &in
	return nil
}

func (s *stubOrderRepo) SetPaymentStatus(_ context.Context, _ int64, paymentStatus string) error {
	s.payStatus = paymentStatus
	return nil
}

func (s *stubOrderRepo) Delete(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return s.deleteErr
}

func (s *stubOrderRepo) Stats(_ context.Context, _ int) (*orderrepo.Stats, error) {
	return s.stats, nil
}

type stubProductRepo struct {
	products map[int64]*domain.Product
	credits  map[int64]int
}

func (s *stubProductRepo) GetActiveByID(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubProductRepo) IncrementStock(_ context.Context, id int64, qty int) error {
	if s.credits == nil {
		s.credits = make(map[int64]int)
	}
	s.credits[id] += qty
	return nil
}

type stubPaymentRepo struct {
	createErr error
	created   []paymentrepo.CreateInput
	txs       []domain.PaymentTransaction
	tx        *domain.PaymentTransaction
	getErr    error
}

func (s *stubPaymentRepo) Create(_ context.Context, in paymentrepo.CreateInput) (*domain.PaymentTransaction, error) {
	s.created = append(s.created, in)
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &domain.PaymentTransaction{ID: 1, OrderID: in.OrderID, TransactionID: in.TransactionID}, nil
}

func (s *stubPaymentRepo) ListByOrder(_ context.Context, _ int64) ([]domain.PaymentTransaction, error) {
	return s.txs, nil
}

func (s *stubPaymentRepo) GetByTransactionID(_ context.Context, _ string) (*domain.PaymentTransaction, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.tx, nil
}

type stubGateway struct {
	intent    *gateway.Intent
	createErr error
	lastInput gateway.CreateIntentInput
}

func (s *stubGateway) CreateIntent(_ context.Context, in gateway.CreateIntentInput) (*gateway.Intent, error) {
	s.lastInput = in
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.intent, nil
}

func (s *stubGateway) RetrieveIntent(_ context.Context, _ string) (*gateway.Intent, error) {
	return s.intent, nil
}

type noopLocks struct{}

func (noopLocks) Acquire(_ int64) func() { return func() {} }

func catalog() *stubProductRepo {
	return &stubProductRepo{products: map[int64]*domain.Product{
		1: {ID: 1, Name: "Tee", SKU: "SKU-TEE", Price: 19.99, StockQuantity: 10, IsActive: true},
		2: {ID: 2, Name: "Mug", SKU: "SKU-MUG", Price: 12.99, StockQuantity: 1, IsActive: true},
	}}
}

func testService(orders *stubOrderRepo, products *stubProductRepo, payments *stubPaymentRepo, gw *stubGateway) *Service {
	return New(orders, products, payments, gw, noopLocks{}, nil)
}

func validInput() AssembleInput {
	return AssembleInput{
		Items:           []ItemRequest{{ProductID: 1, Quantity: 2}},
		Amount:          39.98,
		Currency:        "EUR",
		ShippingAddress: &domain.Address{Street: "Main St 1", City: "Berlin", PostalCode: "10115", Country: "DE"},
	}
}

func customer() domain.Identity {
	return domain.Identity{UserID: 42, Role: domain.RoleCustomer}
}

func TestAssembleRejectsUnknownProduct(t *testing.T) {
	svc := testService(&stubOrderRepo{}, catalog(), &stubPaymentRepo{}, &stubGateway{})
	in := validInput()
	in.Items = []ItemRequest{{ProductID: 99, Quantity: 1}}
	in.Amount = 10

	_, err := svc.Assemble(context.Background(), customer(), in)
	if !errors.Is(err, domain.ErrProductUnavailable) {
		t.Fatalf("expected product unavailable, got %v", err)
	}
}

func TestAssembleRejectsInsufficientStock(t *testing.T) {
	svc := testService(&stubOrderRepo{}, catalog(), &stubPaymentRepo{}, &stubGateway{})
	in := validInput()
	in.Items = []ItemRequest{{ProductID: 2, Quantity: 5}}
	in.Amount = 64.95

	_, err := svc.Assemble(context.Background(), customer(), in)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestAssembleRejectsAmountMismatch(t *testing.T) {
	svc := testService(&stubOrderRepo{}, catalog(), &stubPaymentRepo{}, &stubGateway{})
	in := validInput()
	in.Amount = 20.00

	_, err := svc.Assemble(context.Background(), customer(), in)
	if !errors.Is(err, domain.ErrAmountMismatch) {
		t.Fatalf("expected amount mismatch, got %v", err)
	}
}

func TestAssembleToleratesRoundingDrift(t *testing.T) {
	orders := &stubOrderRepo{}
	gw := &stubGateway{intent: &gateway.Intent{ID: "pi_1", ClientSecret: "cs_1", Status: "requires_payment_method"}}
	svc := testService(orders, catalog(), &stubPaymentRepo{}, gw)
	in := validInput()
	in.Amount = 39.97

	if _, err := svc.Assemble(context.Background(), customer(), in); err != nil {
		t.Fatalf("drift within tolerance must pass: %v", err)
	}
}

func TestAssembleRejectsUnsupportedCurrency(t *testing.T) {
	svc := testService(&stubOrderRepo{}, catalog(), &stubPaymentRepo{}, &stubGateway{})
	in := validInput()
	in.Currency = "JPY"

	if _, err := svc.Assemble(context.Background(), customer(), in); err == nil {
		t.Fatal("expected currency error")
	}
}

func TestAssembleHappyPath(t *testing.T) {
	orders := &stubOrderRepo{}
	payments := &stubPaymentRepo{}
	gw := &stubGateway{intent: &gateway.Intent{ID: "pi_1", ClientSecret: "cs_1", Status: "requires_payment_method"}}
	svc := testService(orders, catalog(), payments, gw)

	res, err := svc.Assemble(context.Background(), customer(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ClientSecret != "cs_1" || res.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Amount != 39.98 || res.Currency != "EUR" {
		t.Fatalf("unexpected totals: %+v", res)
	}
	if !strings.HasPrefix(res.OrderNumber, "ORD-") {
		t.Fatalf("unexpected order number %q", res.OrderNumber)
	}

	if len(orders.created) != 1 {
		t.Fatalf("expected 1 order created, got %d", len(orders.created))
	}
	item := orders.created[0].Items[0]
	if item.ProductName != "Tee" || item.UnitPrice != 19.99 || item.TotalPrice != 39.98 {
		t.Fatalf("item snapshot not taken from catalog: %+v", item)
	}

	if len(payments.created) != 1 || payments.created[0].TransactionID != "pi_1" {
		t.Fatalf("expected pending transaction for pi_1, got %+v", payments.created)
	}
	if gw.lastInput.OrderID != 7 || gw.lastInput.UserID != 42 {
		t.Fatalf("intent metadata not propagated: %+v", gw.lastInput)
	}
}

func TestAssembleRetriesOrderNumberCollision(t *testing.T) {
	orders := &stubOrderRepo{createErrs: []error{domain.ErrOrderNumberCollision, nil}}
	gw := &stubGateway{intent: &gateway.Intent{ID: "pi_1", ClientSecret: "cs_1"}}
	svc := testService(orders, catalog(), &stubPaymentRepo{}, gw)

	if _, err := svc.Assemble(context.Background(), customer(), validInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orders.createCalls != 2 {
		t.Fatalf("expected 2 create attempts, got %d", orders.createCalls)
	}
	if orders.created[0].OrderNumber == orders.created[1].OrderNumber {
		t.Fatal("retry must generate a fresh order number")
	}
}

func TestAssembleGivesUpAfterRepeatedCollisions(t *testing.T) {
	orders := &stubOrderRepo{createErrs: []error{
		domain.ErrOrderNumberCollision, domain.ErrOrderNumberCollision, domain.ErrOrderNumberCollision,
	}}
	svc := testService(orders, catalog(), &stubPaymentRepo{}, &stubGateway{})

	_, err := svc.Assemble(context.Background(), customer(), validInput())
	if !errors.Is(err, domain.ErrOrderNumberCollision) {
		t.Fatalf("expected collision error, got %v", err)
	}
}

func TestAssembleCompensatesOnGatewayFailure(t *testing.T) {
	orders := &stubOrderRepo{}
	gw := &stubGateway{createErr: errors.New("gateway down")}
	svc := testService(orders, catalog(), &stubPaymentRepo{}, gw)

	_, err := svc.Assemble(context.Background(), customer(), validInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(orders.deleted) != 1 || orders.deleted[0] != 7 {
		t.Fatalf("expected order 7 compensated, got %v", orders.deleted)
	}
}

func TestAssembleCompensatesOnTransactionRecordFailure(t *testing.T) {
	orders := &stubOrderRepo{}
	payments := &stubPaymentRepo{createErr: errors.New("db down")}
	gw := &stubGateway{intent: &gateway.Intent{ID: "pi_1", ClientSecret: "cs_1"}}
	svc := testService(orders, catalog(), payments, gw)

	_, err := svc.Assemble(context.Background(), customer(), validInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(orders.deleted) != 1 {
		t.Fatalf("expected compensation delete, got %v", orders.deleted)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	orders := &stubOrderRepo{order: &domain.Order{ID: 7, UserID: 42}}
	svc := testService(orders, catalog(), &stubPaymentRepo{}, &stubGateway{})

	if _, _, err := svc.Get(context.Background(), domain.Identity{UserID: 9, Role: domain.RoleCustomer}, 7); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, _, err := svc.Get(context.Background(), domain.Identity{UserID: 9, Role: domain.RoleAdmin}, 7); err != nil {
		t.Fatalf("admin must read any order: %v", err)
	}
	if _, _, err := svc.Get(context.Background(), customer(), 7); err != nil {
		t.Fatalf("owner must read own order: %v", err)
	}
}

func TestListScopesCustomersToOwnOrders(t *testing.T) {
	orders := &stubOrderRepo{}
	svc := testService(orders, catalog(), &stubPaymentRepo{}, &stubGateway{})

	if _, _, err := svc.List(context.Background(), customer(), orderrepo.ListFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orders.lastFilter.UserID == nil || *orders.lastFilter.UserID != 42 {
		t.Fatalf("customer filter not scoped: %+v", orders.lastFilter)
	}

	if _, _, err := svc.List(context.Background(), domain.Identity{UserID: 1, Role: domain.RoleAdmin}, orderrepo.ListFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orders.lastFilter.UserID != nil {
		t.Fatal("admin filter must stay unscoped")
	}
}

func TestUpdateStatusCancelRestocksPaidOrder(t *testing.T) {
	products := catalog()
	orders := &stubOrderRepo{order: &domain.Order{
		ID: 7, OrderNumber: "ORD-1-ABC", UserID: 42,
		Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentPaid,
		Items: []domain.OrderItem{{ProductID: 1, Quantity: 2}},
	}}
	svc := testService(orders, products, &stubPaymentRepo{}, &stubGateway{})

	got, err := svc.UpdateStatus(context.Background(), 7, StatusEdit{Status: domain.OrderCancelled})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.OrderCancelled {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if products.credits[1] != 2 {
		t.Fatalf("expected stock credited, got %v", products.credits)
	}
}

func TestUpdateStatusCancelSkipsRestockWhenUnpaid(t *testing.T) {
	products := catalog()
	orders := &stubOrderRepo{order: &domain.Order{
		ID: 7, Status: domain.OrderPending, PaymentStatus: domain.PaymentPending,
		Items: []domain.OrderItem{{ProductID: 1, Quantity: 2}},
	}}
	svc := testService(orders, products, &stubPaymentRepo{}, &stubGateway{})

	if _, err := svc.UpdateStatus(context.Background(), 7, StatusEdit{Status: domain.OrderCancelled}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products.credits) != 0 {
		t.Fatalf("unpaid cancel must not credit stock, got %v", products.credits)
	}
}

func TestUpdateStatusCancelIsIdempotent(t *testing.T) {
	products := catalog()
	orders := &stubOrderRepo{order: &domain.Order{
		ID: 7, Status: domain.OrderCancelled, PaymentStatus: domain.PaymentPaid,
		Items: []domain.OrderItem{{ProductID: 1, Quantity: 2}},
	}}
	svc := testService(orders, products, &stubPaymentRepo{}, &stubGateway{})

	if _, err := svc.UpdateStatus(context.Background(), 7, StatusEdit{Status: domain.OrderCancelled}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products.credits) != 0 {
		t.Fatalf("re-cancel must not credit stock again, got %v", products.credits)
	}
}

func TestUpdateStatusRejectsInvalidStatus(t *testing.T) {
	svc := testService(&stubOrderRepo{}, catalog(), &stubPaymentRepo{}, &stubGateway{})
	if _, err := svc.UpdateStatus(context.Background(), 7, StatusEdit{Status: "teleported"}); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestDeleteOnlyRemovesTerminalOrders(t *testing.T) {
	orders := &stubOrderRepo{order: &domain.Order{ID: 7, Status: domain.OrderConfirmed}}
	svc := testService(orders, catalog(), &stubPaymentRepo{}, &stubGateway{})

	if _, err := svc.Delete(context.Background(), 7); err == nil {
		t.Fatal("expected refusal for active order")
	}

	orders.order.Status = domain.OrderCancelled
	if _, err := svc.Delete(context.Background(), 7); err != nil {
		t.Fatalf("cancelled order must delete: %v", err)
	}
}

func TestTransactionEnforcesOwnershipThroughOrder(t *testing.T) {
	orders := &stubOrderRepo{order: &domain.Order{ID: 7, UserID: 42}}
	payments := &stubPaymentRepo{tx: &domain.PaymentTransaction{ID: 1, OrderID: 7, TransactionID: "pi_1"}}
	svc := testService(orders, catalog(), payments, &stubGateway{})

	if _, err := svc.Transaction(context.Background(), domain.Identity{UserID: 9, Role: domain.RoleCustomer}, "pi_1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Transaction(context.Background(), customer(), "pi_1"); err != nil {
		t.Fatalf("owner must read own transaction: %v", err)
	}
}
