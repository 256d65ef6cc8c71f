package schema

// UserSessionTable represents the 'users.session' table
type UserSessionTable struct {
	Table        string
	ID           string
	UserID       string
	Username     string
	UserAgent    string
	IPAddress    string
	Status       string
	CreatedAt    string
	AccessedAt   string
	ExpiresAt    string
	RefreshToken string
}

// UserSession is the schema definition for users.session
var UserSession = UserSessionTable{
	Table:        "users.session",
	ID:           "id",
	UserID:       "userid",
	Username:     "username",
	UserAgent:    "useragent",
	IPAddress:    "ipaddress",
	Status:       "status",
	CreatedAt:    "createdat",
	AccessedAt:   "accessedat",
	ExpiresAt:    "expiresat",
	RefreshToken: "refreshtoken",
}

// Columns returns all standard column names
func (t UserSessionTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.Username, t.UserAgent, t.IPAddress,
		t.Status, t.CreatedAt, t.AccessedAt, t.ExpiresAt, t.RefreshToken,
	}
}
