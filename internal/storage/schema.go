package storage

import (
	"encoding/json"
	"strings"

	"paluwagan/internal/core"
)

type column struct {
	key  string // document key
	name string // SQL column
	kind columnKind
}

type columnKind int

const (
	plainColumn columnKind = iota
	listColumn
	boolColumn
)

type table struct {
	name    string
	entity  string
	columns []column
}

var usersTable = table{
	name:   "users",
	entity: "user",
	columns: []column{
		{"id", "id", plainColumn},
		{"fullName", "full_name", plainColumn},
		{"email", "email", plainColumn},
		{"phoneNumber", "phone_number", plainColumn},
		{"role", "role", plainColumn},
		{"createdAt", "created_at", plainColumn},
		{"roleSelectedAt", "role_selected_at", plainColumn},
		{"activeGroups", "active_groups", listColumn},
		{"totalFunds", "total_funds", plainColumn},
		{"profileImageUrl", "profile_image_url", plainColumn},
		{"fcmToken", "fcm_token", plainColumn},
		{"isVerified", "is_verified", boolColumn},
	},
}

var groupsTable = table{
	name:   "contribution_groups",
	entity: "group",
	columns: []column{
		{"id", "id", plainColumn},
		{"name", "name", plainColumn},
		{"description", "description", plainColumn},
		{"headId", "head_id", plainColumn},
		{"members", "members", listColumn},
		{"contributionAmount", "contribution_amount", plainColumn},
		{"frequency", "frequency", plainColumn},
		{"startDate", "start_date", plainColumn},
		{"endDate", "end_date", plainColumn},
		{"totalFunds", "total_funds", plainColumn},
		{"collectedFunds", "collected_funds", plainColumn},
		{"nextCollectionDate", "next_collection_date", plainColumn},
		{"collectionOrder", "collection_order", listColumn},
		{"currentRound", "current_round", plainColumn},
		{"totalRounds", "total_rounds", plainColumn},
		{"status", "status", plainColumn},
		{"createdAt", "created_at", plainColumn},
		{"updatedAt", "updated_at", plainColumn},
		{"isPublic", "is_public", boolColumn},
		{"maxMembers", "max_members", plainColumn},
	},
}

var collectionsTable = table{
	name:   "collections",
	entity: "collection",
	columns: []column{
		{"id", "id", plainColumn},
		{"groupId", "group_id", plainColumn},
		{"userId", "user_id", plainColumn},
		{"amount", "amount", plainColumn},
		{"dueDate", "due_date", plainColumn},
		{"paidDate", "paid_date", plainColumn},
		{"status", "status", plainColumn},
		{"paymentMethod", "payment_method", plainColumn},
		{"paymentReference", "payment_reference", plainColumn},
		{"round", "round", plainColumn},
		{"createdAt", "created_at", plainColumn},
		{"updatedAt", "updated_at", plainColumn},
		{"reminderSent", "reminder_sent", boolColumn},
		{"lastReminderDate", "last_reminder_date", plainColumn},
		{"notes", "notes", plainColumn},
	},
}

func (t table) selectList() string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

func (t table) column(key string) (column, bool) {
	for _, c := range t.columns {
		if c.key == key {
			return c, true
		}
	}
	return column{}, false
}

// toSQL converts a document value into a driver value for c.
func (c column) toSQL(v any) (any, error) {
	switch c.kind {
	case listColumn:
		if v == nil {
			return "[]", nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case boolColumn:
		if b, _ := v.(bool); b {
			return 1, nil
		}
		return 0, nil
	}
	return v, nil
}

// fromSQL converts a scanned driver value back into a document value. Values
// that cannot be converted are passed through so the decoder reports them.
func (c column) fromSQL(v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch c.kind {
	case listColumn:
		s, ok := v.(string)
		if !ok {
			return v
		}
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return s
		}
		return list
	case boolColumn:
		switch n := v.(type) {
		case int64:
			return n != 0
		case bool:
			return n
		}
	}
	return v
}

// scanDocument reads one row selected with t.selectList into a document.
func (t table) scanDocument(scan func(dest ...any) error) (core.Document, error) {
	vals := make([]any, len(t.columns))
	ptrs := make([]any, len(t.columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := scan(ptrs...); err != nil {
		return nil, err
	}
	doc := make(core.Document, len(t.columns))
	for i, c := range t.columns {
		doc[c.key] = c.fromSQL(vals[i])
	}
	return doc, nil
}
