package mysql

// In MySQL a schema is a database; every query is scoped by table_schema.

const queryListTables = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = ?
	  AND table_type IN ('BASE TABLE', 'VIEW')
	ORDER BY table_name`

const queryTableComment = `
	SELECT COALESCE(table_comment, '')
	FROM information_schema.tables
	WHERE table_schema = ? AND table_name = ?`

const queryColumns = `
	SELECT
		c.column_name,
		c.data_type,
		(c.column_key = 'PRI') AS is_primary_key,
		COALESCE(c.column_comment, '')
	FROM information_schema.columns c
	WHERE c.table_schema = ? AND c.table_name = ?
	ORDER BY c.ordinal_position`

const queryForeignKeys = `
	SELECT
		kcu.column_name,
		kcu.referenced_table_name,
		kcu.referenced_column_name
	FROM information_schema.referential_constraints rc
	JOIN information_schema.key_column_usage kcu
		ON rc.constraint_name = kcu.constraint_name
		AND rc.constraint_schema = kcu.table_schema
	WHERE rc.constraint_schema = ? AND kcu.table_name = ?
	ORDER BY kcu.ordinal_position`
