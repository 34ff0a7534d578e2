package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/Kwazak/umnfestival2026-sub001/internal/apperr"
	"github.com/Kwazak/umnfestival2026-sub001/internal/config"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
	"github.com/Kwazak/umnfestival2026-sub001/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&model.Account{},
		&model.Order{},
		&model.DiscountCode{},
		&model.Ticket{},
		&model.WebhookEvent{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCheckout() config.Checkout {
	return config.Checkout{
		UnitPrice:     150000,
		MaxQuantity:   10,
		Categories:    []string{"festival"},
		BundleEnabled: true,
		BundleRebate2: 4000,
		BundleRebate3: 6000,
		BundleRebate4: 8000,
		BundleRebate5: 10000,
	}
}

// fakeGateway scripts the vendor: token requests count, status calls walk the
// statuses slice (last entry repeats), transient simulates network failures.
type fakeGateway struct {
	mu          sync.Mutex
	tokenCalls  int
	statusCalls int
	statuses    []*model.GatewayStatus
	transient   int // fail this many status calls first
	notReady    bool
}

func (f *fakeGateway) CreateTransactionToken(ctx context.Context, order *model.Order) (*model.GatewayTokenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	return &model.GatewayTokenResult{
		Token:       fmt.Sprintf("tok-%s-%d", order.OrderNumber, f.tokenCalls),
		RedirectURL: "https://pay.example/redirect",
	}, nil
}

func (f *fakeGateway) Verify(ctx context.Context, orderNumber string) (*model.GatewayStatus, error) {
	return f.nextStatus(orderNumber)
}

func (f *fakeGateway) PollStatus(ctx context.Context, orderNumber string) (*model.GatewayStatus, error) {
	return f.nextStatus(orderNumber)
}

func (f *fakeGateway) nextStatus(orderNumber string) (*model.GatewayStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transient > 0 {
		f.transient--
		return nil, apperr.GatewayTransient("simulated network failure", nil)
	}
	if len(f.statuses) == 0 {
		return nil, apperr.NotFound("gateway transaction not found")
	}

	idx := f.statusCalls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.statusCalls++

	status := *f.statuses[idx]
	status.OrderID = orderNumber
	return &status, nil
}

func (f *fakeGateway) VerifySignature(status *model.GatewayStatus) error { return nil }

func (f *fakeGateway) AwaitReady(ctx context.Context) error {
	if f.notReady {
		return apperr.GatewayTransient("gateway not ready within budget", nil)
	}
	return nil
}

// status fixtures leave GrossAmount empty so the amount cross-check only
// engages in the tests that exercise it
func settlementStatus() *model.GatewayStatus {
	return &model.GatewayStatus{
		TransactionID:     "txn-1",
		StatusCode:        "200",
		TransactionStatus: "settlement",
	}
}

func pendingStatus() *model.GatewayStatus {
	return &model.GatewayStatus{
		TransactionID:     "txn-1",
		StatusCode:        "201",
		TransactionStatus: "pending",
	}
}

func deniedStatus() *model.GatewayStatus {
	return &model.GatewayStatus{
		TransactionID:     "txn-1",
		StatusCode:        "202",
		TransactionStatus: "deny",
	}
}

// testEnv wires the full service stack over one in-memory database.
type testEnv struct {
	db         *gorm.DB
	gateway    *fakeGateway
	orders     OrderService
	codes      CodeService
	reconciler Reconciler
	orderRepo  repository.OrderRepository
	codeRepo   repository.CodeRepository
	ticketRepo repository.TicketRepository
	accounts   repository.AccountRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	gateway := &fakeGateway{}

	orderRepo := repository.NewOrderRepository(db)
	codeRepo := repository.NewCodeRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	accountRepo := repository.NewAccountRepository(db)

	codes := NewCodeService(codeRepo)
	orders := NewOrderService(db, orderRepo, codeRepo, ticketRepo, accountRepo, codes, gateway, testCheckout(), testLogger())

	gwCfg := &config.Gateway{VerifyAttempts: 3, VerifyBackoff: 0}
	reconciler := NewReconciler(orders, gateway, gwCfg, testLogger())

	return &testEnv{
		db:         db,
		gateway:    gateway,
		orders:     orders,
		codes:      codes,
		reconciler: reconciler,
		orderRepo:  orderRepo,
		codeRepo:   codeRepo,
		ticketRepo: ticketRepo,
		accounts:   accountRepo,
	}
}

func (e *testEnv) seedAccount(t *testing.T, name, email, phone string) *model.Account {
	t.Helper()
	account := &model.Account{Name: name, Email: email, Phone: phone}
	if err := e.accounts.Create(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}

func (e *testEnv) seedCode(t *testing.T, code *model.DiscountCode) {
	t.Helper()
	if err := e.db.Create(code).Error; err != nil {
		t.Fatalf("seed code: %v", err)
	}
}
