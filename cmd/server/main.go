package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mveracruz/tiendita/internal/adapter/handler"
	"github.com/mveracruz/tiendita/internal/adapter/storage"
	"github.com/mveracruz/tiendita/internal/config"
	"github.com/mveracruz/tiendita/internal/core/domain"
	"github.com/mveracruz/tiendita/internal/core/service"
	"github.com/mveracruz/tiendita/internal/port"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment")
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	feed := storage.NewRedisChangeFeed(rdb)
	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db, feed)

	// Mirror current stock into Redis for the checkout fast path
	if err := seedStockMirror(ctx, mysqlAdapter, redisAdapter); err != nil {
		log.Fatalf("failed to seed stock mirror: %v", err)
	}

	// Initialize services
	catalog := service.NewCatalog(mysqlAdapter, cfg.CatalogCapacity, cfg.StrictMargin)
	committer := service.NewCommitter(mysqlAdapter, redisAdapter)
	report := service.NewReport(mysqlAdapter)

	// Change propagator: other sessions' writes invalidate our mirror,
	// and connected clients get poked over /events.
	propagator := service.NewPropagator(feed)
	propagator.Register(domain.CollectionProducts, func(ctx context.Context) {
		if err := seedStockMirror(ctx, mysqlAdapter, redisAdapter); err != nil {
			log.Printf("failed to refresh stock mirror: %v", err)
		}
	})
	if err := propagator.Start(ctx); err != nil {
		log.Fatalf("failed to start change propagator: %v", err)
	}

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(catalog, committer, report, propagator, cfg.TaxRate)
	router := gin.Default()
	router.Use(cors.Default())
	httpHandler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	propagator.Close()
	log.Println("change propagator stopped")

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

// seedStockMirror rebuilds the Redis mirror from MySQL: every live
// product is written and entries for deleted products are pruned.
// MySQL stays the authority, so running this redundantly is always
// safe.
func seedStockMirror(ctx context.Context, products port.ProductRepository, cache port.StockCache) error {
	all, err := products.List(ctx, port.OrderByName)
	if err != nil {
		return err
	}
	stocks := make(map[string]int, len(all))
	for _, p := range all {
		stocks[p.ID] = p.Stock
	}
	return cache.SyncStock(ctx, stocks)
}
