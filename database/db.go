package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/flashcart/flashcart/config"
	"github.com/flashcart/flashcart/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: nil} // or Cache: newCache if cache is used
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createSchema(db)
	if err != nil {
		return nil, err
	}
	err = createUserTable(db)
	if err != nil {
		return nil, err
	}
	err = createBalanceHistoryTable(db)
	if err != nil {
		return nil, err
	}
	err = createProductTable(db)
	if err != nil {
		return nil, err
	}
	err = createStockHistoryTable(db)
	if err != nil {
		return nil, err
	}
	err = createCartItemTable(db)
	if err != nil {
		return nil, err
	}
	err = createCouponPoolTable(db)
	if err != nil {
		return nil, err
	}
	err = createCouponClaimTable(db)
	if err != nil {
		return nil, err
	}
	err = createOrderTables(db)
	if err != nil {
		return nil, err
	}
	err = createOrderSequenceTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS flashcart`)
	log.Println(err)
	return err
}

// createUserTable creates a PostgreSQL table for the User struct
func createUserTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.users (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			balance NUMERIC(20, 2) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	log.Println(err)
	return err
}

// createBalanceHistoryTable creates a PostgreSQL table for the BalanceHistory struct
func createBalanceHistoryTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.balance_histories (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES flashcart.users(user_id),
			type TEXT NOT NULL CHECK (type IN ('CHARGE', 'DEBIT', 'REFUND')),
			amount NUMERIC(20, 2) NOT NULL,
			balance_before NUMERIC(20, 2) NOT NULL,
			balance_after NUMERIC(20, 2) NOT NULL,
			description TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createProductTable creates a PostgreSQL table for the Product struct
func createProductTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.products (
			id SERIAL PRIMARY KEY,
			product_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			price NUMERIC(20, 2) NOT NULL,
			quantity BIGINT NOT NULL DEFAULT 0,
			safety_stock BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'AVAILABLE',
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createStockHistoryTable creates a PostgreSQL table for the StockHistory struct
func createStockHistoryTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.stock_histories (
			id SERIAL PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES flashcart.products(product_id),
			type TEXT NOT NULL CHECK (type IN ('DECREASE', 'INCREASE')),
			quantity BIGINT NOT NULL,
			stock_before BIGINT NOT NULL,
			stock_after BIGINT NOT NULL,
			reason TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createCartItemTable creates a PostgreSQL table for the CartItem struct
func createCartItemTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.cart_items (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES flashcart.users(user_id),
			product_id TEXT NOT NULL REFERENCES flashcart.products(product_id),
			quantity BIGINT NOT NULL,
			unit_price NUMERIC(20, 2) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, product_id)
		)
	`)
	log.Println(err)
	return err
}

// createCouponPoolTable creates a PostgreSQL table for the CouponPool struct
func createCouponPoolTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.coupon_pools (
			id SERIAL PRIMARY KEY,
			pool_id TEXT NOT NULL UNIQUE,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			description TEXT,
			type TEXT NOT NULL CHECK (type IN ('FIXED_AMOUNT', 'PERCENTAGE')),
			discount_value NUMERIC(20, 2) NOT NULL,
			minimum_order_amount NUMERIC(20, 2) NOT NULL DEFAULT 0,
			maximum_discount_amount NUMERIC(20, 2) NOT NULL DEFAULT 0,
			total_quota BIGINT NOT NULL,
			issued_count BIGINT NOT NULL DEFAULT 0,
			per_user_quota BIGINT NOT NULL DEFAULT 1,
			issue_start_at TIMESTAMP NOT NULL,
			issue_end_at TIMESTAMP NOT NULL,
			valid_from TIMESTAMP NOT NULL,
			valid_until TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	log.Println(err)
	return err
}

// createCouponClaimTable creates a PostgreSQL table for the CouponClaim struct
func createCouponClaimTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.coupon_claims (
			id SERIAL PRIMARY KEY,
			claim_id TEXT NOT NULL UNIQUE,
			pool_id TEXT NOT NULL REFERENCES flashcart.coupon_pools(pool_id),
			user_id TEXT NOT NULL,
			user_seq BIGINT NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'ISSUED',
			rank BIGINT NOT NULL,
			issued_at TIMESTAMP NOT NULL,
			used_at TIMESTAMP,
			UNIQUE (pool_id, user_id, user_seq)
		)
	`)
	log.Println(err)
	return err
}

// createOrderTables creates PostgreSQL tables for the Order and OrderItem structs
func createOrderTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.orders (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL UNIQUE,
			order_number TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL REFERENCES flashcart.users(user_id),
			claim_id TEXT,
			total_amount NUMERIC(20, 2) NOT NULL,
			discount_amount NUMERIC(20, 2) NOT NULL DEFAULT 0,
			final_amount NUMERIC(20, 2) NOT NULL,
			status TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			paid_at TIMESTAMP,
			UNIQUE (user_id, idempotency_key)
		)
	`)
	if err != nil {
		log.Printf("Error creating orders table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.order_items (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES flashcart.orders(order_id),
			product_id TEXT NOT NULL REFERENCES flashcart.products(product_id),
			quantity BIGINT NOT NULL,
			unit_price NUMERIC(20, 2) NOT NULL
		)
	`)
	log.Println(err)
	return err
}

// createOrderSequenceTable creates a PostgreSQL table for the OrderSequence struct
func createOrderSequenceTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flashcart.order_sequences (
			id SERIAL PRIMARY KEY,
			seq_date DATE NOT NULL UNIQUE,
			current_value BIGINT NOT NULL DEFAULT 0
		)
	`)
	log.Println(err)
	return err
}
