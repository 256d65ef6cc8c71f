package schema

// DatabaseConnectionTable represents the 'core.databaseconnection' table
type DatabaseConnectionTable struct {
	Table                string
	ID                   string
	UserID               string
	ConnectionName       string
	Kind                 string
	Host                 string
	Port                 string
	DatabaseName         string
	Username             string
	Password             string
	AdditionalProperties string
	CreatedAt            string
	LastUsedAt           string
	IsActive             string
}

// DatabaseConnection is the schema definition for core.databaseconnection
var DatabaseConnection = DatabaseConnectionTable{
	Table:                "core.databaseconnection",
	ID:                   "id",
	UserID:               "userid",
	ConnectionName:       "connectionname",
	Kind:                 "kind",
	Host:                 "host",
	Port:                 "port",
	DatabaseName:         "databasename",
	Username:             "username",
	Password:             "password",
	AdditionalProperties: "additionalproperties",
	CreatedAt:            "createdat",
	LastUsedAt:           "lastusedat",
	IsActive:             "isactive",
}

// Columns returns all standard column names
func (t DatabaseConnectionTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.ConnectionName, t.Kind, t.Host, t.Port,
		t.DatabaseName, t.Username, t.Password, t.AdditionalProperties,
		t.CreatedAt, t.LastUsedAt, t.IsActive,
	}
}
