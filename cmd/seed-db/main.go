// Command seed-db loads the demo catalog, coupons and customers into the
// database. It runs migrations first, so it can bootstrap an empty instance.
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
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voltmart/checkout/db"
	"github.com/voltmart/checkout/internal/repository"
)

type seedFile struct {
	Products  []productJSON  `json:"products"`
	Coupons   []couponJSON   `json:"coupons"`
	Customers []customerJSON `json:"customers"`
}

type productJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Cost      decimal.Decimal `json:"cost"`
	Colors    []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"colors"`
	Stock []struct {
		ColorID  string `json:"color_id"`
		Quantity int    `json:"quantity"`
	} `json:"stock"`
}

type couponJSON struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discount_type"`
	Value        decimal.Decimal `json:"value"`
	MaxDiscount  decimal.Decimal `json:"max_discount"`
	MinSpend     decimal.Decimal `json:"min_spend"`
	EndsAt       *time.Time      `json:"ends_at"`
}

type customerJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Cart    []struct {
		ProductID string `json:"product_id"`
		ColorID   string `json:"color_id"`
		Quantity  int    `json:"quantity"`
	} `json:"cart"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
		token       string
		tokenPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "", "path to seed JSON file (default: embedded seed data)")
	flag.StringVar(&token, "token", "", "bearer token to issue for the first seeded customer (or VOLT_SEED_TOKEN env)")
	flag.StringVar(&tokenPepper, "token-pepper", "", "HMAC pepper for token hashing (or VOLT_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if token == "" {
		token = os.Getenv("VOLT_SEED_TOKEN")
	}
	if tokenPepper == "" {
		tokenPepper = os.Getenv("VOLT_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, token, tokenPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, token, pepper string) error {
	data := db.Seed
	if seedPath != "" {
		slog.Info("reading seed file", slog.String("path", seedPath))

		var err error
		data, err = os.ReadFile(seedPath)
		if err != nil {
			return errors.Wrap(err, "read seed file")
		}
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

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

	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool, seed.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedCustomers(ctx, pool, seed.Customers); err != nil {
		return errors.Wrap(err, "seed customers")
	}
	if token != "" && len(seed.Customers) > 0 {
		if err := seedToken(ctx, pool, seed.Customers[0].ID, token, pepper); err != nil {
			return errors.Wrap(err, "seed token")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, price, sale_price, cost)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, price = EXCLUDED.price,
				sale_price = EXCLUDED.sale_price, cost = EXCLUDED.cost`,
			p.ID, p.Name, p.Price, p.SalePrice, p.Cost,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		for _, c := range p.Colors {
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_colors (product_id, id, name)
				VALUES ($1, $2, $3)
				ON CONFLICT (product_id, id) DO UPDATE SET name = EXCLUDED.name`,
				p.ID, c.ID, c.Name,
			); err != nil {
				return errors.Wrapf(err, "upsert color %s/%s", p.ID, c.ID)
			}
		}

		for _, s := range p.Stock {
			if _, err := pool.Exec(ctx, `
				INSERT INTO stock (product_id, color_id, quantity)
				VALUES ($1, $2, $3)
				ON CONFLICT (product_id, color_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
				p.ID, s.ColorID, s.Quantity,
			); err != nil {
				return errors.Wrapf(err, "upsert stock %s/%s", p.ID, s.ColorID)
			}
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []couponJSON) error {
	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, `
			INSERT INTO coupons (id, code, discount_type, value, max_discount, min_spend, ends_at, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			ON CONFLICT (code) DO UPDATE SET
				discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
				max_discount = EXCLUDED.max_discount, min_spend = EXCLUDED.min_spend,
				ends_at = EXCLUDED.ends_at, active = TRUE`,
			uuid.NewString(), c.Code, c.DiscountType, c.Value, c.MaxDiscount, c.MinSpend, c.EndsAt,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code))
	}

	return nil
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, customers []customerJSON) error {
	slog.Info("upserting customers", slog.Int("count", len(customers)))

	for _, c := range customers {
		if _, err := pool.Exec(ctx, `
			INSERT INTO customers (id, name, email, phone, address)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, email = EXCLUDED.email,
				phone = EXCLUDED.phone, address = EXCLUDED.address`,
			c.ID, c.Name, c.Email, c.Phone, c.Address,
		); err != nil {
			return errors.Wrapf(err, "upsert customer %s", c.ID)
		}

		for _, l := range c.Cart {
			if _, err := pool.Exec(ctx, `
				INSERT INTO cart_lines (customer_id, product_id, color_id, quantity)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (customer_id, product_id, color_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
				c.ID, l.ProductID, l.ColorID, l.Quantity,
			); err != nil {
				return errors.Wrapf(err, "upsert cart line %s/%s", c.ID, l.ProductID)
			}
		}

		slog.Info("upserted customer", slog.String("id", c.ID), slog.Int("cart_lines", len(c.Cart)))
	}

	return nil
}

func seedToken(ctx context.Context, pool *pgxpool.Pool, customerID, token, pepper string) error {
	slog.Info("seeding customer token", slog.String("customer_id", customerID))

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	tokenHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, `
		INSERT INTO customer_tokens (token_hash, customer_id, revoked)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (token_hash) DO UPDATE SET customer_id = EXCLUDED.customer_id, revoked = FALSE`,
		tokenHash, customerID,
	); err != nil {
		return errors.Wrap(err, "upsert customer token")
	}

	return nil
}
