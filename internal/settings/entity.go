// AngelaMos | 2026
// entity.go

package settings

// Settings is the admin-tunable runtime policy document. A single row
// holds the whole document; reads go through the TTL cache in Service.
type Settings struct {
	Credits      CreditPolicy `json:"credits"`
	Features     Features     `json:"features"`
	Announcement Announcement `json:"announcement"`
}

type CreditPolicy struct {
	SignupBonus      int64       `json:"signup_bonus"`
	ReferralBonus    int64       `json:"referral_bonus"`
	AnalysisCost     int64       `json:"analysis_cost"`
	UploadCost       int64       `json:"upload_cost"`
	AdRewardStandard int64       `json:"ad_reward_standard"`
	AdRewardPremium  int64       `json:"ad_reward_premium"`
	StreakMilestones []Milestone `json:"streak_milestones"`
}

// Milestone awards Bonus credits the day a streak first reaches Days.
type Milestone struct {
	Days  int   `json:"days"`
	Bonus int64 `json:"bonus"`
}

type Features struct {
	MaintenanceMode  bool `json:"maintenance_mode"`
	EnableAiAnalysis bool `json:"enable_ai_analysis"`
}

type Announcement struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func Defaults() Settings {
	return Settings{
		Credits: CreditPolicy{
			SignupBonus:      20,
			ReferralBonus:    10,
			AnalysisCost:     15,
			UploadCost:       5,
			AdRewardStandard: 2,
			AdRewardPremium:  10,
			StreakMilestones: []Milestone{
				{Days: 3, Bonus: 5},
				{Days: 7, Bonus: 15},
				{Days: 14, Bonus: 40},
				{Days: 30, Bonus: 100},
			},
		},
		Features: Features{
			MaintenanceMode:  false,
			EnableAiAnalysis: true,
		},
		Announcement: Announcement{
			Type: "info",
		},
	}
}

// MilestoneBonus returns the one-time bonus for a streak that has just
// reached the given length, or zero when no milestone matches.
func (p CreditPolicy) MilestoneBonus(streak int) int64 {
	for _, m := range p.StreakMilestones {
		if m.Days == streak {
			return m.Bonus
		}
	}
	return 0
}

// AdReward maps a watch type to its base reward. Unknown types fall back
// to the standard reward.
func (p CreditPolicy) AdReward(watchType string) int64 {
	if watchType == "premium" {
		return p.AdRewardPremium
	}
	return p.AdRewardStandard
}
