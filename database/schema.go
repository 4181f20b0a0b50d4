// backend/database/schema.go
package database

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS fear_greed_index (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			record_date DATE NOT NULL,
			fgi_value INT NOT NULL,
			sentiment VARCHAR(50) NOT NULL,
			source_timestamp BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NULL,
			UNIQUE KEY uq_fear_greed_index_record_date (record_date)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			job_name VARCHAR(32) NOT NULL PRIMARY KEY,
			last_attempt_at BIGINT NOT NULL,
			last_success_at BIGINT NULL,
			last_outcome VARCHAR(32) NOT NULL,
			last_error TEXT NULL,
			records_affected BIGINT NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	upsertRun: `
		INSERT INTO ingest_runs (
			job_name, last_attempt_at, last_success_at, last_outcome,
			last_error, records_affected, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			last_attempt_at = VALUES(last_attempt_at),
			last_success_at = COALESCE(VALUES(last_success_at), last_success_at),
			last_outcome = VALUES(last_outcome),
			last_error = VALUES(last_error),
			records_affected = VALUES(records_affected),
			updated_at = VALUES(updated_at)
	`,
	isDuplicate: isMySQLDuplicate,
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS fear_greed_index (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_date TEXT NOT NULL UNIQUE,
			fgi_value INTEGER NOT NULL,
			sentiment TEXT NOT NULL,
			source_timestamp INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			job_name TEXT PRIMARY KEY,
			last_attempt_at INTEGER NOT NULL,
			last_success_at INTEGER,
			last_outcome TEXT NOT NULL,
			last_error TEXT,
			records_affected INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
	},
	upsertRun: `
		INSERT INTO ingest_runs (
			job_name, last_attempt_at, last_success_at, last_outcome,
			last_error, records_affected, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_name) DO UPDATE SET
			last_attempt_at = excluded.last_attempt_at,
			last_success_at = COALESCE(excluded.last_success_at, ingest_runs.last_success_at),
			last_outcome = excluded.last_outcome,
			last_error = excluded.last_error,
			records_affected = excluded.records_affected,
			updated_at = excluded.updated_at
	`,
	isDuplicate: isSQLiteDuplicate,
}
