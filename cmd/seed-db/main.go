// Command seed-db loads the product catalog and demo customers into the
// database. Safe to re-run: everything is upserted by natural key.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/freshmart/grocery-api/internal/storage/postgres"
)

type seedProduct struct {
	Name     string
	Cost     decimal.Decimal
	Weight   decimal.Decimal
	Stock    int
	ImageURL string
}

func main() {
	var (
		databaseURL  string
		productsFile string
		skipDemo     bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.BoolVar(&skipDemo, "skip-demo-customers", false, "do not seed demo customers")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, skipDemo); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, skipDemo bool) error {
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

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if !skipDemo {
		if err := seedCustomers(ctx, pool); err != nil {
			return errors.Wrap(err, "seed customers")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	products, err := decodeProducts(data)
	if err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	const upsertSQL = `
		INSERT INTO products (name, cost, weight, stock, image_url, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (name) DO UPDATE SET
			cost      = EXCLUDED.cost,
			weight    = EXCLUDED.weight,
			stock     = EXCLUDED.stock,
			image_url = EXCLUDED.image_url,
			active    = TRUE`

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertSQL, p.Name, p.Cost, p.Weight, p.Stock, p.ImageURL); err != nil {
			return errors.Wrapf(err, "upsert product %q", p.Name)
		}

		slog.Info("upserted product", slog.String("name", p.Name))
	}

	return nil
}

// decodeProducts parses the seed file. Cost and weight arrive as strings so
// decimal values survive the trip without float rounding.
func decodeProducts(data []byte) ([]seedProduct, error) {
	var products []seedProduct

	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		var p seedProduct
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "name":
				v, err := d.Str()
				p.Name = v
				return err
			case "cost":
				v, err := d.Str()
				if err != nil {
					return err
				}
				p.Cost, err = decimal.NewFromString(v)
				return err
			case "weight":
				v, err := d.Str()
				if err != nil {
					return err
				}
				p.Weight, err = decimal.NewFromString(v)
				return err
			case "stock":
				v, err := d.Int()
				p.Stock = v
				return err
			case "image_url":
				v, err := d.Str()
				p.ImageURL = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, err
	}

	return products, nil
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo customers")

	customers := []struct {
		Username string
		Email    string
	}{
		{Username: "alice", Email: "alice@example.com"},
		{Username: "bob", Email: "bob@example.com"},
	}

	const upsertSQL = `
		INSERT INTO customers (username, email)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET email = EXCLUDED.email`

	for _, c := range customers {
		if _, err := pool.Exec(ctx, upsertSQL, c.Username, c.Email); err != nil {
			return errors.Wrapf(err, "upsert customer %q", c.Username)
		}

		slog.Info("upserted customer", slog.String("username", c.Username))
	}

	return nil
}
