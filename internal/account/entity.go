// AngelaMos | 2026
// entity.go

package account

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Account holds a user's credit balance and entitlement state. Balance is
// a cached projection of the user's completed transactions; every mutation
// goes through the entitlement operations so the two never drift.
type Account struct {
	UserID            string      `db:"user_id"`
	Balance           int64       `db:"balance"`
	UnlockedTemplates TemplateSet `db:"unlocked_templates"`
	StreakCurrent     int         `db:"streak_current"`
	StreakLongest     int         `db:"streak_longest"`
	StreakLastDate    *time.Time  `db:"streak_last_date"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

// TemplateSet is the set of template IDs the user has unlocked, stored as
// a jsonb array. Membership is idempotent.
type TemplateSet []string

func (t TemplateSet) Contains(templateID string) bool {
	for _, id := range t {
		if id == templateID {
			return true
		}
	}
	return false
}

func (t TemplateSet) Value() (driver.Value, error) {
	if t == nil {
		t = TemplateSet{}
	}
	return json.Marshal(t)
}

func (t *TemplateSet) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	case nil:
		*t = TemplateSet{}
		return nil
	default:
		return fmt.Errorf("scan template set: unsupported type %T", src)
	}
}

// StreakUpdate overwrites the ad-streak sub-record.
type StreakUpdate struct {
	Current  int
	Longest  int
	LastDate time.Time
}
