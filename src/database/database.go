package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/ssnreport/backend/src/logger"
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
	migratePresentationsTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS presentations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_code TEXT NOT NULL,
		cronograma TEXT NOT NULL,
		delivery_kind TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		state TEXT NOT NULL DEFAULT 'EMPTY',
		external_ref TEXT,
		response_body TEXT,
		source_file_path TEXT,
		wire_file_path TEXT,
		validation_errors TEXT,
		notes TEXT,
		presented_at TIMESTAMP,
		confirmed_at TIMESTAMP,
		rectification_requested_at TIMESTAMP,
		rectification_resolved_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(company_code, cronograma, delivery_kind, version)
	);

	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		presentation_id INTEGER NOT NULL,
		subtype TEXT NOT NULL,
		tipo_especie TEXT,
		codigo_especie TEXT,
		cant_especies REAL,
		codigo_afectacion TEXT,
		tipo_valuacion TEXT,
		fecha_movimiento TEXT,
		fecha_liquidacion TEXT,
		precio_compra REAL,
		precio_venta REAL,
		fecha_pase_vt TEXT,
		precio_pase_vt REAL,
		codigo_especie_canje TEXT,
		cant_especies_canje REAL,
		codigo_banco TEXT,
		cdf TEXT,
		fecha_constitucion TEXT,
		fecha_vencimiento TEXT,
		moneda TEXT,
		valor_nominal REAL,
		tasa REAL,
		FOREIGN KEY(presentation_id) REFERENCES presentations(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS stocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		presentation_id INTEGER NOT NULL,
		subtype TEXT NOT NULL,
		tipo_especie TEXT,
		codigo_especie TEXT,
		cantidad_devengado REAL,
		cantidad_percibido REAL,
		codigo_afectacion TEXT,
		tipo_valuacion TEXT,
		con_cotizacion BOOLEAN DEFAULT FALSE,
		en_custodia BOOLEAN DEFAULT FALSE,
		valor_contable REAL,
		prevision_desvalorizacion REAL,
		codigo_banco TEXT,
		cdf TEXT,
		fecha_constitucion TEXT,
		fecha_vencimiento TEXT,
		moneda TEXT,
		valor_nominal_origen REAL,
		valor_nominal_nacional REAL,
		tasa REAL,
		codigo_sgr TEXT,
		codigo_cheque TEXT,
		fecha_emision TEXT,
		fecha_adquisicion TEXT,
		valor_adquisicion REAL,
		catalog_warning TEXT,
		FOREIGN KEY(presentation_id) REFERENCES presentations(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS ssn_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		company_code TEXT NOT NULL,
		token TEXT NOT NULL,
		expires_at TIMESTAMP,
		is_mock BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS poller_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		scanned INTEGER DEFAULT 0,
		updated INTEGER DEFAULT 0,
		errored INTEGER DEFAULT 0
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

func migratePresentationsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='presentations'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'presentations' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'presentations' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'presentations' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'presentations' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(presentations)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'presentations'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'presentations': %v", err)
		}
		return
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
				logger.L.Error("Error scanning column info for 'presentations'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'presentations': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'presentations'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'presentations': %v", err)
		}
		return
	}

	if _, ok := columnExists["notes"]; !ok {
		_, err := DB.Exec("ALTER TABLE presentations ADD COLUMN notes TEXT")
		if err != nil {
			logger.L.Error("Error adding 'notes' column to 'presentations' table", "error", err)
		} else {
			logger.L.Info("Added 'notes' column to 'presentations' table")
		}
	}

	if _, ok := columnExists["confirmed_at"]; !ok {
		_, err := DB.Exec("ALTER TABLE presentations ADD COLUMN confirmed_at TIMESTAMP")
		if err != nil {
			logger.L.Error("Error adding 'confirmed_at' column to 'presentations' table", "error", err)
		} else {
			logger.L.Info("Added 'confirmed_at' column to 'presentations' table")
		}
	}

	if _, ok := columnExists["validation_errors"]; !ok {
		_, err := DB.Exec("ALTER TABLE presentations ADD COLUMN validation_errors TEXT")
		if err != nil {
			logger.L.Error("Error adding 'validation_errors' column to 'presentations' table", "error", err)
		} else {
			logger.L.Info("Added 'validation_errors' column to 'presentations' table")
		}
	}
}
