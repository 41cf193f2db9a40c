package queries

const roomColumns = `id, name, created_by, guest_ids, created_at`

const (
	QueryCreateRoom = `
		INSERT INTO rooms (name, created_by, created_at)
		VALUES ($1, $2, $3)
		RETURNING id;
	`
	QueryGetRoomByID      = `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1;`
	QueryListRoomsCreated = `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE created_by = $1
		ORDER BY created_at, id;
	`
	QueryListRoomsByIDs = `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE id = ANY($1)
		ORDER BY created_at, id;
	`
	QueryListRoomMemberships = `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE created_by = $1 OR $1 = ANY(guest_ids)
		ORDER BY created_at, id;
	`
	QueryLockRoom    = `SELECT created_by FROM rooms WHERE id = $1 FOR UPDATE;`
	QueryAppendGuest = `
		UPDATE rooms
		SET guest_ids = array_append(guest_ids, $2)
		WHERE id = $1 AND NOT ($2 = ANY(guest_ids));
	`
	QueryDeleteRoom = `DELETE FROM rooms WHERE id = $1;`
)
