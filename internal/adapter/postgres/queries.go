package postgres

// --- Catalog queries ---

// queryResolveSchema resolves the schema for a table by name.
// $1 = table_name; schema filter placeholder at %s starts at $2.
const queryResolveSchema = `
	SELECT n.nspname
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relname = $1 AND c.relkind IN ('r', 'p', 'm', 'v', 'f') AND %s
	ORDER BY n.nspname = ANY(current_schemas(false)) DESC, n.nspname
	LIMIT 1`

// queryTableFacts fetches kind, row estimate and total size in one round trip.
// reltuples is -1 on PostgreSQL 14+ for a table that was never analyzed.
// $1 = schema, $2 = table_name.
const queryTableFacts = `
	SELECT
		c.relkind::text,
		c.reltuples::bigint,
		COALESCE(pg_total_relation_size(c.oid), 0)
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relname = $2`

// queryColumns uses format_type so declared lengths and scales survive.
// $1 = schema, $2 = table_name.
const queryColumns = `
	SELECT a.attname, pg_catalog.format_type(a.atttypid, a.atttypmod), a.attnum::int, NOT a.attnotnull
	FROM pg_attribute a
	JOIN pg_class c ON c.oid = a.attrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
	ORDER BY a.attnum`

// queryIndexes lists index columns in key order; expression keys are skipped.
// $1 = schema, $2 = table_name.
const queryIndexes = `
	SELECT
		ic.relname,
		i.indisunique,
		ARRAY(
			SELECT a.attname::text
			FROM unnest(i.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
			JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
			ORDER BY k.ord
		)
	FROM pg_index i
	JOIN pg_class ic ON ic.oid = i.indexrelid
	JOIN pg_class t ON t.oid = i.indrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	WHERE n.nspname = $1 AND t.relname = $2
	ORDER BY ic.relname`

// queryConstraints fetches primary, unique, foreign key and check constraints.
// $1 = schema, $2 = table_name.
const queryConstraints = `
	SELECT
		c.conname,
		c.contype::text,
		ARRAY(
			SELECT a.attname::text
			FROM unnest(c.conkey) WITH ORDINALITY AS k(attnum, ord)
			JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
			ORDER BY k.ord
		),
		COALESCE(rn.nspname || '.' || rt.relname, '')
	FROM pg_constraint c
	JOIN pg_class t ON t.oid = c.conrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	LEFT JOIN pg_class rt ON rt.oid = c.confrelid
	LEFT JOIN pg_namespace rn ON rn.oid = rt.relnamespace
	WHERE n.nspname = $1 AND t.relname = $2 AND c.contype IN ('p', 'u', 'f', 'c')
	ORDER BY c.conname`

// queryTriggers decodes tgtype into the firing events.
// $1 = schema, $2 = table_name.
const queryTriggers = `
	SELECT
		tg.tgname,
		concat_ws(' OR ',
			CASE WHEN tg.tgtype::int & 4 <> 0 THEN 'INSERT' END,
			CASE WHEN tg.tgtype::int & 16 <> 0 THEN 'UPDATE' END,
			CASE WHEN tg.tgtype::int & 8 <> 0 THEN 'DELETE' END,
			CASE WHEN tg.tgtype::int & 32 <> 0 THEN 'TRUNCATE' END
		),
		tg.tgenabled <> 'D'
	FROM pg_trigger tg
	JOIN pg_class t ON t.oid = tg.tgrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	WHERE n.nspname = $1 AND t.relname = $2 AND NOT tg.tgisinternal
	ORDER BY tg.tgname`

// queryReferencingConstraints lists foreign keys in other tables that point at
// the table. $1 = schema, $2 = table_name.
const queryReferencingConstraints = `
	SELECT
		c.conname,
		cn.nspname || '.' || ct.relname,
		ARRAY(
			SELECT a.attname::text
			FROM unnest(c.conkey) WITH ORDINALITY AS k(attnum, ord)
			JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
			ORDER BY k.ord
		)
	FROM pg_constraint c
	JOIN pg_class t ON t.oid = c.confrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	JOIN pg_class ct ON ct.oid = c.conrelid
	JOIN pg_namespace cn ON cn.oid = ct.relnamespace
	WHERE c.contype = 'f' AND n.nspname = $1 AND t.relname = $2 AND c.conrelid <> c.confrelid
	ORDER BY c.conname`

// queryFindReferences prefilters views, materialized views and routines whose
// source text mentions both the table and the column. The caller decides
// whether a mention is a predicate. $1 = table_name, $2 = column_name.
const queryFindReferences = `
	SELECT 'view', schemaname::text, viewname::text, definition
	FROM pg_views
	WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
		AND strpos(lower(definition), lower($1)) > 0
		AND strpos(lower(definition), lower($2)) > 0
	UNION ALL
	SELECT 'view', schemaname::text, matviewname::text, definition
	FROM pg_matviews
	WHERE strpos(lower(definition), lower($1)) > 0
		AND strpos(lower(definition), lower($2)) > 0
	UNION ALL
	SELECT 'routine', n.nspname::text, p.proname::text, p.prosrc
	FROM pg_proc p
	JOIN pg_namespace n ON n.oid = p.pronamespace
	WHERE n.nspname NOT IN ('pg_catalog', 'information_schema')
		AND strpos(lower(p.prosrc), lower($1)) > 0
		AND strpos(lower(p.prosrc), lower($2)) > 0
	ORDER BY 1, 2, 3`

// --- Probe queries ---
// Each has %s placeholders for the quoted column and the qualified table, in
// that order unless noted. Identifiers are always quoted by the caller.

// queryProbeDateRange: %[1]s column, %[2]s table, %[3]s optional year filter.
const queryProbeDateRange = `
	SELECT
		min(%[1]s)::timestamp,
		max(%[1]s)::timestamp,
		count(*),
		count(%[1]s),
		COALESCE(to_char(min(%[1]s)::timestamp, 'HH24:MI:SS'), ''),
		COALESCE(to_char(max(%[1]s)::timestamp, 'HH24:MI:SS'), '')
	FROM %[2]s
	%[3]s`

const yearFilter = `WHERE extract(year FROM %s) BETWEEN $1 AND $2`

// queryProbeTimeComponent: $1 = row limit.
const queryProbeTimeComponent = `
	SELECT EXISTS (
		SELECT 1
		FROM (SELECT %[1]s::timestamp AS v FROM %[2]s WHERE %[1]s IS NOT NULL LIMIT $1) s
		WHERE s.v <> date_trunc('day', s.v)
	)`

const queryProbeDistinctDays = `
	SELECT count(DISTINCT date_trunc('day', %[1]s::timestamp))
	FROM %[2]s
	WHERE %[1]s IS NOT NULL`

const queryProbeNumericRange = `
	SELECT min(%[1]s)::bigint, max(%[1]s)::bigint, count(%[1]s)
	FROM %[2]s`

const queryProbeSampleValue = `
	SELECT %[1]s::text FROM %[2]s WHERE %[1]s IS NOT NULL LIMIT 1`

// queryProbeFormatMatch: $1 = regex, $2 = row limit.
const queryProbeFormatMatch = `
	SELECT count(*)
	FROM (SELECT %[1]s::text AS v FROM %[2]s WHERE %[1]s IS NOT NULL LIMIT $2) s
	WHERE s.v ~ $1`

// --- Task store ---

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS partition_tasks (
		id            BIGSERIAL PRIMARY KEY,
		owner         TEXT NOT NULL DEFAULT '',
		table_name    TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'PENDING',
		readiness     TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		analyzed_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS partition_tasks_status_idx ON partition_tasks (status)`,
	`CREATE TABLE IF NOT EXISTS partition_analysis_results (
		task_id     BIGINT PRIMARY KEY REFERENCES partition_tasks (id) ON DELETE CASCADE,
		run_id      UUID NOT NULL,
		payload     JSONB NOT NULL,
		analyzed_at TIMESTAMPTZ NOT NULL
	)`,
}

const taskColumns = `id, owner, table_name, status, readiness, error_message, created_at, updated_at, analyzed_at`

const queryInsertTask = `
	INSERT INTO partition_tasks (owner, table_name)
	VALUES ($1, $2)
	RETURNING ` + taskColumns

const queryGetTask = `SELECT ` + taskColumns + ` FROM partition_tasks WHERE id = $1`

const queryLockTask = `SELECT status FROM partition_tasks WHERE id = $1 FOR UPDATE`

const queryClaimTask = `
	UPDATE partition_tasks
	SET status = 'ANALYZING', readiness = '', error_message = '', analyzed_at = NULL, updated_at = now()
	WHERE id = $1
	RETURNING ` + taskColumns

// queryDeleteResult drops the result of a previous run once the task is
// claimed again or fails.
const queryDeleteResult = `DELETE FROM partition_analysis_results WHERE task_id = $1`

const queryUpsertResult = `
	INSERT INTO partition_analysis_results (task_id, run_id, payload, analyzed_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (task_id) DO UPDATE
	SET run_id = EXCLUDED.run_id, payload = EXCLUDED.payload, analyzed_at = EXCLUDED.analyzed_at`

const queryMarkAnalyzed = `
	UPDATE partition_tasks
	SET status = 'ANALYZED', readiness = $2, error_message = '', analyzed_at = $3, updated_at = now()
	WHERE id = $1`

const queryUpdateStatus = `
	UPDATE partition_tasks
	SET status = $2, readiness = $3, error_message = $4, updated_at = now()
	WHERE id = $1`

const queryGetResult = `SELECT payload FROM partition_analysis_results WHERE task_id = $1`

const queryListTasks = `
	SELECT ` + taskColumns + `
	FROM partition_tasks
	WHERE $1 = '' OR status = $1
	ORDER BY id`
