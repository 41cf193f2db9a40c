package queries

const messageColumns = `id, room_id, sender_id, sender_name, content, created_at`

const (
	QueryAppendMessage = `
		INSERT INTO messages (room_id, sender_id, sender_name, content)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + messageColumns + `;
	`
	QueryListMessagesByRoom = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at ASC, id ASC;
	`
	// keyset pagination over (created_at, id) DESC
	QueryMessageHistory = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4;
	`
)
