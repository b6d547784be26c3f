package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/mvtrinh/sneaker-market/internal/adapter/storage"
	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
)

// Hammers the reservation path with more concurrent requests than
// stock and verifies exactly initialStock of them win.
func main() {
	ctx := context.Background()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/sneakermarket?parseTime=true&multiStatements=true"
	}

	db, err := storage.Open(ctx, dsn, 50, 25)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db, "internal/adapter/storage/migrations"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Seed a dedicated variant for this run
	productID := uuid.NewString()
	variantID := uuid.NewString()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, base_price) VALUES (?, 'Stress Runner', 'sneakers', 180.00)`,
		productID); err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO variants (id, product_id, size_label, size_system, sku, price, stock)
		VALUES (?, ?, '42', 'EU', ?, 180.00, ?)`,
		variantID, productID, "STRESS-"+variantID[:8], initialStock); err != nil {
		log.Fatalf("failed to seed variant: %v", err)
	}
	defer func() {
		db.ExecContext(ctx, `DELETE FROM reservations WHERE variant_id = ?`, variantID)
		db.ExecContext(ctx, `DELETE FROM variants WHERE id = ?`, variantID)
		db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID)
	}()

	store := storage.NewMySQLStore(db)
	manager := service.NewReservationManager(store, service.ReservationConfig{})
	availability := service.NewAvailability(store)

	var successCount atomic.Int32
	var rejectedCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			actor := domain.UserActor(fmt.Sprintf("stress-user-%d", n))
			_, err := manager.Reserve(ctx, actor, variantID, 1, 15*time.Minute)
			if err == nil {
				successCount.Add(1)
				return
			}
			var insufficient *domain.InsufficientStockError
			if errors.As(err, &insufficient) {
				rejectedCount.Add(1)
			} else {
				errorCount.Add(1)
				log.Printf("request %d: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	rejected := rejectedCount.Load()
	failed := errorCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Reserved:         %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Errors:           %d\n", failed)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && rejected == totalRequests-initialStock && failed == 0 {
		fmt.Printf("PASS: exactly %d reservations succeeded, %d rejected\n", success, rejected)
	} else {
		fmt.Printf("FAIL: expected %d/%d, got %d/%d (%d errors)\n",
			initialStock, totalRequests-initialStock, success, rejected, failed)
	}

	available, err := availability.AvailableStock(ctx, variantID)
	if err != nil {
		log.Fatalf("failed to read availability: %v", err)
	}
	fmt.Printf("Final Available Stock: %d\n", available)

	if available == 0 {
		fmt.Println("PASS: availability depleted to 0")
	} else {
		fmt.Printf("FAIL: expected availability 0, got %d\n", available)
	}
}
