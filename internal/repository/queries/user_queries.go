package queries

const (
	QueryCreateUser = `
		INSERT INTO users (name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`
	QueryGetUserByID = `
		SELECT id, name, email, password_hash, joined_room_ids, created_at
		FROM users
		WHERE id = $1;
	`
	QueryGetUserByEmail = `
		SELECT id, name, email, password_hash, joined_room_ids, created_at
		FROM users
		WHERE email = $1;
	`
	QueryExistsUserByEmail = `SELECT 1 FROM users WHERE email = $1;`
	QueryAppendJoinedRoom  = `
		UPDATE users
		SET joined_room_ids = array_append(joined_room_ids, $2)
		WHERE id = $1 AND NOT ($2 = ANY(joined_room_ids));
	`
)
