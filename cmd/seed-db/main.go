// Command seed-db loads the product catalog, demo coupons, an address, and a
// default API key into the database. Catalog files may be plain JSON or
// gzip-compressed JSON (.gz).
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/gearbox-checkout/internal/domain/address"
	"github.com/xenking/gearbox-checkout/internal/domain/auth"
	"github.com/xenking/gearbox-checkout/internal/domain/coupon"
	"github.com/xenking/gearbox-checkout/internal/domain/product"
	"github.com/xenking/gearbox-checkout/internal/storage/postgres"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	ImageURL string          `json:"imageUrl"`
	Stock    int             `json:"stock"`
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
		userID       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json.gz", "path to catalog JSON file (.json or .json.gz)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or GEARBOX_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or GEARBOX_API_KEY_PEPPER env)")
	flag.StringVar(&userID, "user-id", "demo-user", "user id the seeded API key acts for")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEARBOX_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or GEARBOX_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("GEARBOX_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper, userID); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper, userID string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), catalogFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAddress(ctx, postgres.NewAddressRepository(pool), userID); err != nil {
		return errors.Wrap(err, "seed address")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper, userID); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func readCatalog(path string) ([]productJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer gz.Close()
		r = gz
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}
	return products, nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	products, err := readCatalog(catalogFile)
	if err != nil {
		return err
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, product.Product{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Category: p.Category,
			ImageURL: p.ImageURL,
			Stock:    p.Stock,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding demo coupons")

	now := time.Now()
	coupons := []coupon.Coupon{
		{
			ID:         "gears10",
			Code:       "GEARS10",
			Discount:   decimal.NewFromInt(10),
			StartDate:  now.AddDate(0, -1, 0),
			EndDate:    now.AddDate(1, 0, 0),
			UsageLimit: 0,
		},
		{
			ID:         "launch25",
			Code:       "LAUNCH25",
			Discount:   decimal.NewFromInt(25),
			StartDate:  now.AddDate(0, -1, 0),
			EndDate:    now.AddDate(0, 1, 0),
			UsageLimit: 100,
		},
		{
			ID:         "singleuse",
			Code:       "SINGLEUSE",
			Discount:   decimal.NewFromInt(15),
			StartDate:  now.AddDate(0, -1, 0),
			EndDate:    now.AddDate(0, 1, 0),
			UsageLimit: 1,
		},
		{
			// Already expired.
			ID:        "winter24",
			Code:      "WINTER24",
			Discount:  decimal.NewFromInt(20),
			StartDate: now.AddDate(-1, 0, 0),
			EndDate:   now.AddDate(0, -6, 0),
		},
	}

	for _, c := range coupons {
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code))
	}

	return nil
}

func seedAddress(ctx context.Context, repo *postgres.AddressRepository, userID string) error {
	slog.Info("seeding demo address", slog.String("user_id", userID))

	return repo.Upsert(ctx, address.Address{
		ID:       "demo-address",
		UserID:   userID,
		Name:     "Demo User",
		Line1:    "1 High Street",
		City:     "London",
		Postcode: "SW1A 1AA",
		Country:  "GB",
	})
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper, userID string) error {
	slog.Info("seeding default API key", slog.String("user_id", userID))

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := repo.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: keyHash,
		UserID:  userID,
		Name:    "Default test key",
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))

	return nil
}
