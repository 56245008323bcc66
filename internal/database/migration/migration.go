package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_legal_cases",
		SQL: `CREATE TABLE IF NOT EXISTS legal_cases (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  title       TEXT        NOT NULL,
  description TEXT        NOT NULL DEFAULT '',
  client_id   TEXT        NOT NULL,
  profile_id  TEXT        NOT NULL,
  status      TEXT        NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  created_by  TEXT        NOT NULL DEFAULT '',
  updated_by  TEXT        NOT NULL DEFAULT ''
);`,
	},
	{
		Name: "create_index_legal_cases_profile_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_legal_cases_profile_id ON legal_cases (profile_id, created_at DESC);`,
	},
	{
		Name: "create_index_legal_cases_client_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_legal_cases_client_id ON legal_cases (client_id, created_at DESC);`,
	},
	{
		// One table for all document categories; the category column is the
		// discriminator and the variant columns are nullable or defaulted.
		Name: "create_table_case_documents",
		SQL: `CREATE TABLE IF NOT EXISTS case_documents (
  id                    UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  case_id               UUID        NOT NULL REFERENCES legal_cases (id) ON DELETE CASCADE,
  title                 TEXT        NOT NULL DEFAULT '',
  description           TEXT        NOT NULL DEFAULT '',
  file_path             TEXT        NOT NULL DEFAULT '',
  file_type             TEXT        NOT NULL DEFAULT '',
  file_size             BIGINT      NOT NULL DEFAULT 0 CHECK (file_size >= 0),
  storage_id            TEXT        NOT NULL DEFAULT '',
  document_type         TEXT        NOT NULL DEFAULT '',
  status                TEXT        NOT NULL,
  category              TEXT        NOT NULL,
  metadata_json         TEXT        NOT NULL DEFAULT '',
  questionnaire_type    TEXT        NOT NULL DEFAULT '',
  completion_percentage INT,
  profile_type          TEXT        NOT NULL DEFAULT '',
  identity_verified     BOOLEAN,
  verification_method   TEXT        NOT NULL DEFAULT '',
  document_reference    TEXT        NOT NULL DEFAULT '',
  issuing_authority     TEXT        NOT NULL DEFAULT '',
  issue_date            TIMESTAMPTZ,
  expiry_date           TIMESTAMPTZ,
  verification_required BOOLEAN,
  verified              BOOLEAN,
  created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_case_documents_case_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_case_documents_case_id ON case_documents (case_id, created_at);`,
	},
	{
		Name: "create_index_case_documents_storage_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_case_documents_storage_id ON case_documents (storage_id);`,
	},
	{
		// Append-only audit and replay log. No updated_at on purpose: rows are
		// never touched after insert.
		Name: "create_table_event_logs",
		SQL: `CREATE TABLE IF NOT EXISTS event_logs (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  case_id     UUID        NOT NULL,
  event_id    UUID        NOT NULL,
  event_type  TEXT        NOT NULL,
  occurred_at TIMESTAMPTZ NOT NULL,
  event_data  TEXT        NOT NULL DEFAULT '',
  created_by  TEXT        NOT NULL DEFAULT '',
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_event_logs_case_occurred",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_event_logs_case_occurred ON event_logs (case_id, occurred_at);`,
	},
	{
		Name: "create_index_event_logs_case_type_occurred",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_event_logs_case_type_occurred ON event_logs (case_id, event_type, occurred_at);`,
	},
}

// EnsureMigrated checks if the 'legal_cases' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.legal_cases') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
