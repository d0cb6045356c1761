package audit

const (
	InsertAccount = `
		INSERT INTO provisioned_accounts (
			record_id,
			uid,
			dn,
			uid_number,
			samba_sid,
			created_by,
			created_at,
			attributes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	ListRecentAccounts = `
		SELECT record_id, uid, dn, uid_number, samba_sid, created_by, created_at, attributes
		FROM provisioned_accounts
		ORDER BY created_at DESC
		LIMIT $1`
)
