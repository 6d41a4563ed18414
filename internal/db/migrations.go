package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'vru_type') THEN
			CREATE TYPE vru_type AS ENUM ('pedestrian', 'cyclist', 'motorcyclist', 'wheelchair_user', 'scooter_rider');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'video_status') THEN
			CREATE TYPE video_status AS ENUM ('UPLOADING', 'PROCESSING', 'COMPLETED', 'FAILED');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'session_status') THEN
			CREATE TYPE session_status AS ENUM ('ACTIVE', 'COMPLETED');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'detection_job_status') THEN
			CREATE TYPE detection_job_status AS ENUM ('PENDING', 'RUNNING', 'COMPLETED', 'FAILED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS videos (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID REFERENCES projects(id) ON DELETE SET NULL,
		name VARCHAR(255) NOT NULL,
		status video_status NOT NULL DEFAULT 'UPLOADING',
		duration DOUBLE PRECISION NOT NULL DEFAULT 0,
		frame_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		storage_path TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_videos_project_id ON videos(project_id);`,
	`CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status);`,
	`CREATE TABLE IF NOT EXISTS annotations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		video_id UUID NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		detection_id VARCHAR(64) NOT NULL,
		frame_number INTEGER NOT NULL,
		timestamp DOUBLE PRECISION NOT NULL,
		vru_type vru_type NOT NULL,
		bbox_x DOUBLE PRECISION NOT NULL,
		bbox_y DOUBLE PRECISION NOT NULL,
		bbox_width DOUBLE PRECISION NOT NULL,
		bbox_height DOUBLE PRECISION NOT NULL,
		bbox_confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		bbox_label VARCHAR(64) NOT NULL DEFAULT '',
		occluded BOOLEAN NOT NULL DEFAULT FALSE,
		truncated BOOLEAN NOT NULL DEFAULT FALSE,
		difficult BOOLEAN NOT NULL DEFAULT FALSE,
		validated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_annotations_video_id ON annotations(video_id);`,
	`CREATE INDEX IF NOT EXISTS idx_annotations_frame_number ON annotations(frame_number);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_annotations_video_detection ON annotations(video_id, detection_id);`,
	`CREATE TABLE IF NOT EXISTS annotation_sessions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		video_id UUID NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		project_id UUID REFERENCES projects(id) ON DELETE SET NULL,
		status session_status NOT NULL DEFAULT 'ACTIVE',
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_annotation_sessions_video_id ON annotation_sessions(video_id);`,
	`CREATE INDEX IF NOT EXISTS idx_annotation_sessions_project_id ON annotation_sessions(project_id);`,
	`CREATE TABLE IF NOT EXISTS detection_jobs (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		video_id UUID NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		session_id UUID REFERENCES annotation_sessions(id) ON DELETE SET NULL,
		status detection_job_status NOT NULL DEFAULT 'PENDING',
		source VARCHAR(16) NOT NULL DEFAULT '',
		detection_count INTEGER NOT NULL DEFAULT 0,
		processing_time_ms BIGINT NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_jobs_video_id ON detection_jobs(video_id);`,
	`CREATE OR REPLACE FUNCTION set_updated_at() RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = now();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_projects_updated_at') THEN
			CREATE TRIGGER trg_projects_updated_at
				BEFORE UPDATE ON projects
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_videos_updated_at') THEN
			CREATE TRIGGER trg_videos_updated_at
				BEFORE UPDATE ON videos
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_annotations_updated_at') THEN
			CREATE TRIGGER trg_annotations_updated_at
				BEFORE UPDATE ON annotations
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_annotation_sessions_updated_at') THEN
			CREATE TRIGGER trg_annotation_sessions_updated_at
				BEFORE UPDATE ON annotation_sessions
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_detection_jobs_updated_at') THEN
			CREATE TRIGGER trg_detection_jobs_updated_at
				BEFORE UPDATE ON detection_jobs
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
