package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order. The schema is the
// multi-user retrofit: a user_profiles table plus owner/assignee columns
// and indexes on every protected-resource table. Cascade behavior is
// chosen per kind: leaf content is deleted with its owner, assignment
// references are nulled.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create user_profiles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_profiles (
					id UUID PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					full_name VARCHAR(255),
					avatar_url TEXT,
					role VARCHAR(20) NOT NULL DEFAULT 'user'
						CHECK (role IN ('admin', 'user', 'viewer', 'guest')),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					password_hash TEXT NOT NULL,
					metadata JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_user_profiles_email ON user_profiles(email);
				CREATE INDEX idx_user_profiles_role ON user_profiles(role) WHERE is_active;
			`,
		},
		{
			Version:     2,
			Description: "Create knowledge resource tables with owner references",
			SQL: `
				CREATE TABLE IF NOT EXISTS sources (
					id UUID PRIMARY KEY,
					owner_id UUID REFERENCES user_profiles(id) ON DELETE CASCADE,
					payload JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS crawled_pages (
					id UUID PRIMARY KEY,
					owner_id UUID REFERENCES user_profiles(id) ON DELETE CASCADE,
					payload JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS code_examples (
					id UUID PRIMARY KEY,
					owner_id UUID REFERENCES user_profiles(id) ON DELETE CASCADE,
					payload JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_sources_owner_id ON sources(owner_id);
				CREATE INDEX idx_crawled_pages_owner_id ON crawled_pages(owner_id);
				CREATE INDEX idx_code_examples_owner_id ON code_examples(owner_id);
			`,
		},
		{
			Version:     3,
			Description: "Create project tables with owner and assignee references",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id UUID PRIMARY KEY,
					owner_id UUID REFERENCES user_profiles(id) ON DELETE CASCADE,
					payload JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS tasks (
					id UUID PRIMARY KEY,
					project_id UUID REFERENCES projects(id) ON DELETE CASCADE,
					owner_id UUID REFERENCES user_profiles(id) ON DELETE CASCADE,
					assignee_id UUID REFERENCES user_profiles(id) ON DELETE SET NULL,
					payload JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS document_versions (
					id UUID PRIMARY KEY,
					project_id UUID REFERENCES projects(id) ON DELETE CASCADE,
					owner_id UUID REFERENCES user_profiles(id) ON DELETE CASCADE,
					payload JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS prompts (
					id UUID PRIMARY KEY,
					owner_id UUID REFERENCES user_profiles(id) ON DELETE CASCADE,
					payload JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_projects_owner_id ON projects(owner_id);
				CREATE INDEX idx_tasks_owner_id ON tasks(owner_id);
				CREATE INDEX idx_tasks_assignee_id ON tasks(assignee_id);
				CREATE INDEX idx_tasks_project_id ON tasks(project_id);
				CREATE INDEX idx_document_versions_owner_id ON document_versions(owner_id);
				CREATE INDEX idx_document_versions_project_id ON document_versions(project_id);
				CREATE INDEX idx_prompts_owner_id ON prompts(owner_id);
			`,
		},
		{
			Version:     4,
			Description: "Keep denormalized task owner in sync with project owner",
			SQL: `
				CREATE OR REPLACE FUNCTION sync_task_owner() RETURNS TRIGGER AS $$
				BEGIN
					IF NEW.owner_id IS DISTINCT FROM OLD.owner_id THEN
						UPDATE tasks SET owner_id = NEW.owner_id, updated_at = NOW()
						WHERE project_id = NEW.id
						  AND owner_id IS NOT DISTINCT FROM OLD.owner_id;
					END IF;
					RETURN NEW;
				END;
				$$ LANGUAGE plpgsql;

				DROP TRIGGER IF EXISTS trg_sync_task_owner ON projects;
				CREATE TRIGGER trg_sync_task_owner
					AFTER UPDATE OF owner_id ON projects
					FOR EACH ROW EXECUTE FUNCTION sync_task_owner();
			`,
		},
		{
			Version:     5,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					event_type VARCHAR(50) NOT NULL,
					actor_id UUID,
					target_id UUID,
					resource_kind VARCHAR(50),
					detail JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_events_actor_id ON audit_events(actor_id);
				CREATE INDEX idx_audit_events_event_type ON audit_events(event_type);
				CREATE INDEX idx_audit_events_created_at ON audit_events(created_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations inside transactions,
// recording applied versions in archon_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS archon_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM archon_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO archon_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
