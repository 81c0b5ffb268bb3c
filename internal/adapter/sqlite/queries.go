package sqlite

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS partition_tasks (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		owner         TEXT NOT NULL DEFAULT '',
		table_name    TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'PENDING',
		readiness     TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL,
		analyzed_at   DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS partition_tasks_status_idx ON partition_tasks (status)`,
	`CREATE TABLE IF NOT EXISTS partition_analysis_results (
		task_id     INTEGER PRIMARY KEY REFERENCES partition_tasks (id) ON DELETE CASCADE,
		run_id      TEXT NOT NULL,
		payload     TEXT NOT NULL,
		analyzed_at DATETIME NOT NULL
	)`,
}

const taskColumns = `id, owner, table_name, status, readiness, error_message, created_at, updated_at, analyzed_at`

const queryInsertTask = `
	INSERT INTO partition_tasks (owner, table_name, status, created_at, updated_at)
	VALUES (?, ?, 'PENDING', ?, ?)`

const queryGetTask = `SELECT ` + taskColumns + ` FROM partition_tasks WHERE id = ?`

const queryTaskStatus = `SELECT status FROM partition_tasks WHERE id = ?`

// queryClaimTask only matches claimable statuses, so the check and the write
// are one statement.
const queryClaimTask = `
	UPDATE partition_tasks
	SET status = 'ANALYZING', readiness = '', error_message = '', analyzed_at = NULL, updated_at = ?
	WHERE id = ? AND status IN ('PENDING', 'ANALYZED', 'FAILED')`

// queryDeleteResult drops the result of a previous run once the task is
// claimed again or fails.
const queryDeleteResult = `DELETE FROM partition_analysis_results WHERE task_id = ?`

const queryUpsertResult = `
	INSERT INTO partition_analysis_results (task_id, run_id, payload, analyzed_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (task_id) DO UPDATE
	SET run_id = excluded.run_id, payload = excluded.payload, analyzed_at = excluded.analyzed_at`

const queryMarkAnalyzed = `
	UPDATE partition_tasks
	SET status = 'ANALYZED', readiness = ?, error_message = '', analyzed_at = ?, updated_at = ?
	WHERE id = ?`

const queryUpdateStatus = `
	UPDATE partition_tasks
	SET status = ?, readiness = ?, error_message = ?, updated_at = ?
	WHERE id = ?`

const queryGetResult = `SELECT payload FROM partition_analysis_results WHERE task_id = ?`

const queryListTasks = `
	SELECT ` + taskColumns + `
	FROM partition_tasks
	WHERE ? = '' OR status = ?
	ORDER BY id`
