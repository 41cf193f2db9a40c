package queries

const (
	QueryCreateSession = `
		INSERT INTO sessions (
			user_id, token_hash, started_at, expires_at, user_agent, ip
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id;
	`
	QueryGetSessionByTokenHash = `
		SELECT
			id, user_id, token_hash, started_at, expires_at,
			user_agent,
			CASE WHEN ip IS NULL THEN NULL ELSE host(ip) END AS ip_text,
			is_revoked
		FROM sessions
		WHERE token_hash = $1
		LIMIT 1;
	`
	QueryRevokeSession               = `UPDATE sessions SET is_revoked = TRUE WHERE id = $1;`
	QueryDeleteSessionsExpiredByTime = `DELETE FROM sessions WHERE expires_at <= $1;`
)
