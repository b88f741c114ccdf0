package models

import (
	"testing"
	"time"
)

func TestViolationRecordIsBanned(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		banUntil *time.Time
		want     bool
	}{
		{"no ban", nil, false},
		{"expired ban", &past, false},
		{"ends now", &now, false},
		{"active ban", &future, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ViolationRecord{BanUntil: tt.banUntil}
			if got := v.IsBanned(now); got != tt.want {
				t.Errorf("IsBanned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserCloneIsDeep(t *testing.T) {
	ban := time.Now().Add(time.Hour)
	u := &User{
		ID: "u1",
		Violations: ViolationRecord{
			WarningCount: 2,
			BanUntil:     &ban,
			FlagHistory:  []FlagEntry{{Reason: "spam", ActionTaken: ActionWarning}},
		},
	}

	c := u.Clone()
	c.Violations.FlagHistory[0].ActionTaken = ActionTemporaryBan
	*c.Violations.BanUntil = ban.Add(time.Hour)
	c.Violations.WarningCount = 0

	if u.Violations.FlagHistory[0].ActionTaken != ActionWarning {
		t.Error("Clone() shares flag history with the original")
	}
	if !u.Violations.BanUntil.Equal(ban) {
		t.Error("Clone() shares banUntil with the original")
	}
	if u.Violations.WarningCount != 2 {
		t.Error("Clone() shares warning count with the original")
	}

	var nilUser *User
	if nilUser.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}
