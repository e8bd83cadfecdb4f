// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the knobs for the HTTP server, the backing stores and
// the business-rule variants.
type Config struct {
	HTTPAddr        string
	MySQLDSN        string
	RedisAddr       string
	RedisPassword   string
	ShutdownTimeout time.Duration

	// TaxRate is applied on top of the cart subtotal.
	TaxRate float64
	// CatalogCapacity caps live products.
	CatalogCapacity int
	// StrictMargin rejects listings priced at or below cost.
	StrictMargin bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatenv(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/tiendita?parseTime=true"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		ShutdownTimeout: time.Duration(atoienv("SHUTDOWN_TIMEOUT_SECONDS", 5)) * time.Second,
		TaxRate:         floatenv("TAX_RATE", 0.16),
		CatalogCapacity: atoienv("CATALOG_CAPACITY", 50),
		StrictMargin:    boolenv("MARGIN_STRICT", true),
	}
}
