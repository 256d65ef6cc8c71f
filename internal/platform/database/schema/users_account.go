package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table          string
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	Salt           string
	Role           string
	Status         string
	FailedAttempts string
	LockedUntil    string
	LastLoginAt    string
	CreatedAt      string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:          "users.account",
	ID:             "id",
	Username:       "username",
	Email:          "email",
	PasswordHash:   "passwordhash",
	Salt:           "salt",
	Role:           "role",
	Status:         "status",
	FailedAttempts: "failedattempts",
	LockedUntil:    "lockeduntil",
	LastLoginAt:    "lastloginat",
	CreatedAt:      "createdat",
}

// Columns returns all standard column names
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Email, t.PasswordHash, t.Salt, t.Role,
		t.Status, t.FailedAttempts, t.LockedUntil, t.LastLoginAt, t.CreatedAt,
	}
}
