package oracle

// queryResolveOwner finds the owner of a bare object name, preferring the
// session's current schema. :1 = object_name.
const queryResolveOwner = `
	SELECT owner
	FROM all_objects
	WHERE object_name = :1
	  AND object_type IN ('TABLE', 'VIEW', 'MATERIALIZED VIEW')
	ORDER BY CASE WHEN owner = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA') THEN 0 ELSE 1 END, owner
	FETCH FIRST 1 ROWS ONLY`

// queryTableFacts returns the object type, organization and optimizer
// statistics of a table. A materialized view owns a container table of the
// same name, so the MATERIALIZED VIEW row sorts first.
// :1 = owner, :2 = table_name.
const queryTableFacts = `
	SELECT
		o.object_type,
		t.iot_type,
		t.partitioned,
		t.num_rows,
		NVL(t.blocks, 0) * NVL(ts.block_size, 8192) AS size_bytes
	FROM all_objects o
	LEFT JOIN all_tables t
	  ON t.owner = o.owner AND t.table_name = o.object_name
	LEFT JOIN user_tablespaces ts
	  ON ts.tablespace_name = t.tablespace_name
	WHERE o.owner = :1
	  AND o.object_name = :2
	  AND o.object_type IN ('TABLE', 'VIEW', 'MATERIALIZED VIEW')
	ORDER BY CASE o.object_type WHEN 'MATERIALIZED VIEW' THEN 0 ELSE 1 END
	FETCH FIRST 1 ROWS ONLY`

// :1 = owner, :2 = table_name.
const queryColumns = `
	SELECT column_name, data_type, data_precision, data_scale, column_id, nullable
	FROM all_tab_columns
	WHERE owner = :1 AND table_name = :2
	ORDER BY column_id`

// :1 = owner, :2 = table_name.
const queryIndexes = `
	SELECT
		i.index_name,
		i.uniqueness,
		LISTAGG(c.column_name, ',') WITHIN GROUP (ORDER BY c.column_position) AS column_list
	FROM all_indexes i
	JOIN all_ind_columns c
	  ON c.index_owner = i.owner AND c.index_name = i.index_name
	WHERE i.table_owner = :1 AND i.table_name = :2
	GROUP BY i.index_name, i.uniqueness
	ORDER BY i.index_name`

// queryConstraints skips system-named check constraints, which Oracle
// creates for every NOT NULL column. :1 = owner, :2 = table_name.
const queryConstraints = `
	SELECT
		c.constraint_name,
		c.constraint_type,
		LISTAGG(cc.column_name, ',') WITHIN GROUP (ORDER BY cc.position) AS column_list,
		CASE WHEN r.table_name IS NOT NULL THEN r.owner || '.' || r.table_name END AS referenced_table
	FROM all_constraints c
	LEFT JOIN all_cons_columns cc
	  ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
	LEFT JOIN all_constraints r
	  ON r.owner = c.r_owner AND r.constraint_name = c.r_constraint_name
	WHERE c.owner = :1
	  AND c.table_name = :2
	  AND c.constraint_type IN ('P', 'U', 'R', 'C')
	  AND NOT (c.constraint_type = 'C' AND c.generated = 'GENERATED NAME')
	GROUP BY c.constraint_name, c.constraint_type, r.owner, r.table_name
	ORDER BY c.constraint_name`

// :1 = owner, :2 = table_name.
const queryTriggers = `
	SELECT trigger_name, triggering_event, status
	FROM all_triggers
	WHERE table_owner = :1 AND table_name = :2
	ORDER BY trigger_name`

// queryReferencingConstraints lists foreign keys in other tables that point at
// the table. :1 = owner, :2 = table_name.
const queryReferencingConstraints = `
	SELECT
		c.constraint_name,
		c.owner || '.' || c.table_name AS child_table,
		LISTAGG(cc.column_name, ',') WITHIN GROUP (ORDER BY cc.position) AS column_list
	FROM all_constraints c
	JOIN all_constraints p
	  ON p.owner = c.r_owner AND p.constraint_name = c.r_constraint_name
	JOIN all_cons_columns cc
	  ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
	WHERE c.constraint_type = 'R'
	  AND p.owner = :1
	  AND p.table_name = :2
	  AND NOT (c.owner = p.owner AND c.table_name = p.table_name)
	GROUP BY c.constraint_name, c.owner, c.table_name
	ORDER BY c.constraint_name`

// queryDependents lists views and PL/SQL units that depend on the table.
// :1 = owner, :2 = table_name.
const queryDependents = `
	SELECT DISTINCT type AS object_type, owner, name
	FROM all_dependencies
	WHERE referenced_owner = :1
	  AND referenced_name = :2
	  AND type IN ('VIEW', 'PROCEDURE', 'FUNCTION', 'PACKAGE BODY', 'TRIGGER')
	ORDER BY owner, name`

// ALL_VIEWS.TEXT is a LONG; it is fetched on its own and filtered client-side.
// :1 = owner, :2 = view_name.
const queryViewText = `
	SELECT text FROM all_views WHERE owner = :1 AND view_name = :2`

// :1 = owner, :2 = name, :3 = type.
const querySourceText = `
	SELECT text FROM all_source WHERE owner = :1 AND name = :2 AND type = :3 ORDER BY line`

// Probe templates take the hint as %[1]s, the quoted column as %[2]s and the
// qualified table as %[3]s. Bind placeholders appear in argument order.

// %[4]s is an optional yearFilter.
const queryProbeDateRange = `
	SELECT %[1]s
		MIN(%[2]s) AS min_value,
		MAX(%[2]s) AS max_value,
		COUNT(*) AS total,
		COUNT(%[2]s) AS non_null,
		TO_CHAR(MIN(%[2]s), 'HH24:MI:SS') AS clock_min,
		TO_CHAR(MAX(%[2]s), 'HH24:MI:SS') AS clock_max
	FROM %[3]s
	%[4]s`

const yearFilter = `WHERE EXTRACT(YEAR FROM %s) BETWEEN :1 AND :2`

// :1 = sample rows.
const queryProbeTimeComponent = `
	SELECT CASE WHEN EXISTS (
		SELECT 1 FROM (
			SELECT %[1]s %[2]s AS v FROM %[3]s WHERE %[2]s IS NOT NULL FETCH FIRST :1 ROWS ONLY
		) s WHERE s.v <> TRUNC(s.v)
	) THEN 1 ELSE 0 END AS found
	FROM dual`

const queryProbeDistinctDays = `
	SELECT %[1]s COUNT(DISTINCT TRUNC(%[2]s)) FROM %[3]s`

const queryProbeNumericRange = `
	SELECT %[1]s MIN(%[2]s) AS min_value, MAX(%[2]s) AS max_value, COUNT(%[2]s) AS non_null
	FROM %[3]s`

const queryProbeSampleValue = `
	SELECT %[1]s TO_CHAR(%[2]s) FROM %[3]s WHERE %[2]s IS NOT NULL FETCH FIRST 1 ROWS ONLY`

// :1 = sample rows, :2 = regex.
const queryProbeFormatMatch = `
	SELECT COUNT(*) FROM (
		SELECT %[1]s %[2]s AS v FROM %[3]s WHERE %[2]s IS NOT NULL FETCH FIRST :1 ROWS ONLY
	) s
	WHERE REGEXP_LIKE(s.v, :2)`
