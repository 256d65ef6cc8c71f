package schema

// ConversationTurnTable represents the 'core.conversationturn' table
type ConversationTurnTable struct {
	Table        string
	ID           string
	UserID       string
	ConnectionID string
	Message      string
	Kind         string
	Reply        string
	Query        string
	RowCount     string
	TotalMillis  string
	CreatedAt    string
}

// ConversationTurn is the schema definition for core.conversationturn
var ConversationTurn = ConversationTurnTable{
	Table:        "core.conversationturn",
	ID:           "id",
	UserID:       "userid",
	ConnectionID: "connectionid",
	Message:      "message",
	Kind:         "kind",
	Reply:        "reply",
	Query:        "query",
	RowCount:     "rowcount",
	TotalMillis:  "totalmillis",
	CreatedAt:    "createdat",
}

// Columns returns all standard column names
func (t ConversationTurnTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.ConnectionID, t.Message, t.Kind,
		t.Reply, t.Query, t.RowCount, t.TotalMillis, t.CreatedAt,
	}
}
