package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"AgriDataHub/internal/appmanager"
	"AgriDataHub/internal/audit"
	"AgriDataHub/internal/config"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store"
	"AgriDataHub/internal/store/memstore"
	"AgriDataHub/internal/store/pgstore"
	"AgriDataHub/internal/store/sqlitestore"
)

// openStore connects the row store selected by DB_DRIVER and applies the
// migrations. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, cat *schema.Catalogue) (store.RowStore, func(), error) {
	db := cfg.DB
	switch db.Driver {
	case config.DriverPostgres:
		pgCfg := pgstore.Config{
			User:           db.User,
			Password:       db.Password,
			Host:           db.Host,
			Port:           db.Port,
			Name:           db.Name,
			MinConns:       int32(db.MinConns),
			MaxConns:       int32(db.MaxConns),
			ConnectTimeout: db.ConnectTimeout,
			AcquireTimeout: db.AcquireTimeout,
			QueryTimeout:   db.QueryTimeout,
		}
		if err := migratePostgres(pgCfg.DSN()); err != nil {
			return nil, nil, err
		}
		st, err := pgstore.Open(ctx, pgCfg)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case config.DriverSQLite:
		st, err := sqlitestore.Open(db.SQLitePath, db.QueryTimeout)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(config.DriverSQLite, st.DB()); err != nil {
			st.Close()
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil

	case config.DriverMemory:
		tables := cat.Tables()
		tables[audit.Table] = audit.Columns
		return memstore.New(tables), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown DB_DRIVER %q", db.Driver)
}

// migratePostgres runs the migrations over a short-lived database/sql handle.
func migratePostgres(dsn string) error {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()
	return store.Migrate(config.DriverPostgres, sqlDB)
}

func main() {
	// Load .env for local dev
	cfg := config.Load(".env", "../.env")

	cat, err := schema.LoadCatalogue(cfg.ModulesFile)
	if err != nil {
		log.Fatal("failed to load module catalogue:", err)
	}

	st, release, err := openStore(context.Background(), cfg, cat)
	if err != nil {
		log.Fatal("failed to open row store:", err)
	}
	defer release()

	appmanager.SetConfig(cfg)
	appmanager.SetCatalogue(cat)
	appmanager.SetStore(st)

	manager := appmanager.NewAppManager()

	// Load service configs from YAML
	servicesCfg, err := appmanager.LoadServiceSequence(cfg.ServicesFile)
	if err != nil {
		log.Fatal("failed to load service sequence:", err)
	}

	if err := manager.AutoRegisterServices(servicesCfg); err != nil {
		log.Fatal("failed to register services:", err)
	}

	if err := manager.StartAll(); err != nil {
		log.Fatal("failed to start:", err)
	}
	log.Printf("[INFO] %s store ready, modules: %v", cfg.DB.Driver, cat.Names())

	// Graceful shutdown handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := manager.StopAll(); err != nil {
		log.Println("[ERROR] failed to stop:", err)
	}
}
