// Command seed-db provisions a fresh database: runs migrations, loads the
// product catalog from JSON, seeds a demo promocode, and registers a user and
// an admin API key.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/topup-store/internal/domain/auth"
	"github.com/xenking/topup-store/internal/domain/product"
	"github.com/xenking/topup-store/internal/domain/promocode"
	"github.com/xenking/topup-store/internal/repository"
)

type productJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Platform  string          `json:"platform"`
	Type      string          `json:"product_type"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    bool            `json:"active"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		userKey      string
		adminKey     string
		pepper       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&userKey, "user-key", "", "user API key to seed (or TOPUP_SEED_USER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or TOPUP_SEED_ADMIN_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or TOPUP_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if userKey == "" {
		userKey = os.Getenv("TOPUP_SEED_USER_KEY")
	}
	if adminKey == "" {
		adminKey = os.Getenv("TOPUP_SEED_ADMIN_KEY")
	}
	if userKey == "" || adminKey == "" {
		slog.Error("API keys are required: set --user-key/--admin-key or TOPUP_SEED_USER_KEY/TOPUP_SEED_ADMIN_KEY")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("TOPUP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, userKey, adminKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, userKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedPromocodes(ctx, repository.NewPromocodeRepository(pool)); err != nil {
		return errors.Wrap(err, "seed promocodes")
	}

	if err := seedAPIKeys(ctx, repository.NewAPIKeyRepository(pool), userKey, adminKey, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var items []productJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(items)))

	for _, it := range items {
		err := repo.Upsert(ctx, &product.Product{
			ID:       it.ID,
			Name:     it.Name,
			Platform: it.Platform,
			Type:     it.Type,
			Price:    it.UnitPrice,
			Active:   it.Active,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", it.ID)
		}

		slog.Info("upserted product", slog.String("id", it.ID), slog.String("name", it.Name))
	}

	return nil
}

func seedPromocodes(ctx context.Context, repo *repository.PromocodeRepository) error {
	slog.Info("seeding demo promocodes")

	codes := []promocode.Promocode{
		{
			Code:            "WELCOME10",
			DiscountPercent: decimal.NewFromInt(10),
			MaxRedemptions:  1000,
			ExpiresAt:       time.Now().Add(90 * 24 * time.Hour),
			Active:          true,
		},
		{
			Code:            "FLASH25",
			DiscountPercent: decimal.NewFromInt(25),
			MaxRedemptions:  50,
			ExpiresAt:       time.Now().Add(48 * time.Hour),
			Active:          true,
		},
	}

	for i := range codes {
		if err := repo.Upsert(ctx, &codes[i]); err != nil {
			return errors.Wrapf(err, "upsert promocode %s", codes[i].Code)
		}

		slog.Info("upserted promocode", slog.String("code", codes[i].Code))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, repo *repository.APIKeyRepository, userKey, adminKey, pepper string) error {
	slog.Info("seeding API keys")

	keys := []struct {
		raw  string
		info auth.APIKeyInfo
	}{
		{
			raw: userKey,
			info: auth.APIKeyInfo{
				ID:     "seed-user",
				UserID: "user-demo",
				Name:   "Demo user key",
				Role:   auth.RoleUser,
			},
		},
		{
			raw: adminKey,
			info: auth.APIKeyInfo{
				ID:     "seed-admin",
				UserID: "admin-demo",
				Name:   "Demo admin key",
				Role:   auth.RoleAdmin,
			},
		},
	}

	for _, k := range keys {
		mac := hmac.New(sha256.New, []byte(pepper))
		mac.Write([]byte(k.raw))
		k.info.KeyHash = hex.EncodeToString(mac.Sum(nil))

		if err := repo.Upsert(ctx, &k.info, true); err != nil {
			return errors.Wrapf(err, "upsert api key %s", k.info.ID)
		}

		slog.Info("upserted API key",
			slog.String("id", k.info.ID),
			slog.String("role", string(k.info.Role)),
		)
	}

	return nil
}
