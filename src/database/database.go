package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/investfolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateUserTable()   // Migration for users table
	migrateOrdersTable() // Migration for orders table

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		auth_provider TEXT DEFAULT 'local',
		is_email_verified BOOLEAN DEFAULT FALSE,
		email_verification_token TEXT,
		email_verification_token_expires_at TIMESTAMP,
		password_reset_token TEXT,
		password_reset_token_expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		isin TEXT NOT NULL,
		quantity REAL NOT NULL,
		unit_price_eur REAL NOT NULL,
		total_price_eur REAL NOT NULL,
		order_date TEXT NOT NULL,
		price_source TEXT,
		venue TEXT,
		requested_date TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS isin_ticker_map (
		isin TEXT PRIMARY KEY,
		ticker_symbol TEXT NOT NULL,
		exchange TEXT,
		currency TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_checked_at TIMESTAMP
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// tableColumns returns the set of existing columns of a table, or nil when
// the table does not exist yet (creation will bring the full schema).
func tableColumns(table string) map[string]bool {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("Table does not exist, no migration needed as table will be created.", "table", table)
			} else {
				stdlog.Printf("'%s' table does not exist, no migration needed as table will be created.", table)
			}
			return nil
		}
		if logger.L != nil {
			logger.L.Error("Error checking for table", "table", table, "error", err)
		} else {
			stdlog.Printf("Error checking for '%s' table: %v", table, err)
		}
		return nil
	}

	rows, err := DB.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema", "table", table, "error", err)
		} else {
			stdlog.Printf("Error querying table schema for '%s': %v", table, err)
		}
		return nil
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info", "table", table, "error", err)
			} else {
				stdlog.Printf("Error scanning column info for '%s': %v", table, err)
			}
			return nil
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info", "table", table, "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for '%s': %v", table, err)
		}
		return nil
	}
	return columnExists
}

func addColumn(table, column, definition string) {
	_, err := DB.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + definition)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error adding column", "table", table, "column", column, "error", err)
		} else {
			stdlog.Printf("Error adding column '%s' to '%s': %v", column, table, err)
		}
	} else {
		if logger.L != nil {
			logger.L.Info("Added column", "table", table, "column", column)
		} else {
			stdlog.Printf("Added column '%s' to '%s'.", column, table)
		}
	}
}

func migrateUserTable() {
	columnExists := tableColumns("users")
	if columnExists == nil {
		return
	}

	if _, ok := columnExists["email"]; !ok {
		addColumn("users", "email", "TEXT NOT NULL DEFAULT ''")
	}
	if _, ok := columnExists["is_email_verified"]; !ok {
		addColumn("users", "is_email_verified", "BOOLEAN DEFAULT FALSE")
	}
	if _, ok := columnExists["email_verification_token"]; !ok {
		addColumn("users", "email_verification_token", "TEXT")
	}
	if _, ok := columnExists["email_verification_token_expires_at"]; !ok {
		addColumn("users", "email_verification_token_expires_at", "TIMESTAMP")
	}
	if _, ok := columnExists["password_reset_token"]; !ok {
		addColumn("users", "password_reset_token", "TEXT")
	}
	if _, ok := columnExists["password_reset_token_expires_at"]; !ok {
		addColumn("users", "password_reset_token_expires_at", "TIMESTAMP")
	}
	if _, ok := columnExists["auth_provider"]; !ok {
		addColumn("users", "auth_provider", "TEXT DEFAULT 'local'")
	}
	if _, ok := columnExists["created_at"]; !ok {
		addColumn("users", "created_at", "TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	}
	if _, ok := columnExists["updated_at"]; !ok {
		addColumn("users", "updated_at", "TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	}
}

func migrateOrdersTable() {
	columnExists := tableColumns("orders")
	if columnExists == nil {
		return
	}

	// Orders placed before dated pricing existed have no requested_date.
	if _, ok := columnExists["requested_date"]; !ok {
		addColumn("orders", "requested_date", "TEXT")
	}
	if _, ok := columnExists["price_source"]; !ok {
		addColumn("orders", "price_source", "TEXT")
	}
	if _, ok := columnExists["venue"]; !ok {
		addColumn("orders", "venue", "TEXT")
	}
	if _, ok := columnExists["created_at"]; !ok {
		addColumn("orders", "created_at", "TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	}
}
