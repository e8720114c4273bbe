package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/payrush/reconciler/internal/api"
	"github.com/payrush/reconciler/internal/domain"
	"github.com/payrush/reconciler/internal/gateway"
	"github.com/payrush/reconciler/internal/metrics"
	"github.com/payrush/reconciler/internal/reconcile"
	"github.com/payrush/reconciler/internal/repository"
)

func main() {
	port := getEnv("PORT", "8080")
	dbPath := getEnv("DB_PATH", "payrush.db")
	flwBaseURL := getEnv("FLW_BASE_URL", "https://api.flutterwave.com/v3")
	flwSecretKey := os.Getenv("FLW_SECRET_KEY")
	webhookSecret := os.Getenv("FLW_WEBHOOK_HASH")
	gatewayTimeout := getEnvSeconds("GATEWAY_TIMEOUT_SECONDS", 10*time.Second)
	repairInterval := getEnvSeconds("REPAIR_INTERVAL_SECONDS", 5*time.Minute)

	if flwSecretKey == "" {
		log.Fatal("FLW_SECRET_KEY is required")
	}
	if webhookSecret == "" {
		log.Fatal("FLW_WEBHOOK_HASH is required")
	}

	log.Printf("Initializing database at %s", dbPath)
	db, err := repository.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	metrics.Register()

	// Create repositories.
	invoiceRepo := repository.NewInvoiceRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)

	// Create the gateway client and reconciliation engine.
	gw := gateway.NewClient(flwBaseURL, flwSecretKey, gatewayTimeout)
	engine := reconcile.NewEngine(gw, invoiceRepo, paymentRepo)

	// Seed invoices if DB is empty.
	count, err := invoiceRepo.Count()
	if err != nil {
		log.Fatalf("Failed to count invoices: %v", err)
	}
	if count == 0 {
		log.Println("Database is empty, seeding invoices from testdata...")
		if err := seedInvoices(invoiceRepo); err != nil {
			log.Printf("WARNING: Failed to seed invoices: %v", err)
		}
	} else {
		log.Printf("Database already has %d invoices, skipping seed", count)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the repair sweep for partially-applied reconciliations.
	sweeper := &reconcile.Sweeper{
		Payments: paymentRepo,
		Invoices: invoiceRepo,
		Interval: repairInterval,
	}
	go sweeper.Run(ctx)

	// Create router.
	router := api.NewRouter(engine, invoiceRepo, paymentRepo, webhookSecret)

	log.Printf("PayRush Payment Reconciliation Service")
	log.Printf("Listening on http://localhost:%s", port)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  POST   /api/payments/verify")
	log.Printf("  POST   /api/webhooks/flutterwave")
	log.Printf("  GET    /api/webhooks/flutterwave")
	log.Printf("  GET    /api/invoices")
	log.Printf("  GET    /api/invoices/{id}")
	log.Printf("  GET    /api/payments")
	log.Printf("  GET    /api/dashboard")
	log.Printf("  GET    /healthz")
	log.Printf("  GET    /metrics")

	srv := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			return time.Duration(s) * time.Second
		}
	}
	return def
}

func seedInvoices(repo *repository.InvoiceRepo) error {
	// Try multiple possible locations for testdata.
	candidates := []string{
		"testdata/invoices.json",
		filepath.Join(".", "testdata", "invoices.json"),
	}

	// Also try to find relative to the executable.
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "invoices.json"),
			filepath.Join(dir, "..", "..", "testdata", "invoices.json"),
		)
	}

	var data []byte
	var loadErr error
	for _, path := range candidates {
		data, loadErr = os.ReadFile(path)
		if loadErr == nil {
			log.Printf("Loaded invoices from %s", path)
			break
		}
	}
	if loadErr != nil {
		return fmt.Errorf("could not find invoices.json in any candidate path: %w", loadErr)
	}

	var invs []domain.Invoice
	if err := json.Unmarshal(data, &invs); err != nil {
		return fmt.Errorf("unmarshal invoices: %w", err)
	}

	inserted, err := repo.BulkInsert(invs)
	if err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}

	log.Printf("Seeded %d invoices (out of %d in file)", inserted, len(invs))
	return nil
}
