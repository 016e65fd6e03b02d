package models

import "time"

// AdStatus is the lifecycle state of a submitted ad on the backend.
type AdStatus string

const (
	AdStatusPending   AdStatus = "pending"
	AdStatusActive    AdStatus = "active"
	AdStatusCompleted AdStatus = "completed"
	AdStatusRejected  AdStatus = "rejected"
)

// DefaultAdReward is credited for a view when an ad carries no reward of its own.
const DefaultAdReward = 10

// Ad is an ad as the backend stores it. Only active ads are served, never to
// their owner, and never twice to the same user.
type Ad struct {
	ID           int64
	OwnerUserID  int64
	Type         AdType
	Content      string
	Duration     int64
	Reward       int64
	TargetViews  int64
	CurrentViews int64
	Status       AdStatus
}

// Descriptor converts the stored ad into what one viewing session needs.
func (a Ad) Descriptor(bloggerBaseURL string) AdDescriptor {
	reward := a.Reward
	if reward <= 0 {
		reward = DefaultAdReward
	}
	return AdDescriptor{
		ID:             a.ID,
		Duration:       a.Duration,
		Reward:         reward,
		Type:           a.Type,
		Content:        a.Content,
		BloggerBaseURL: bloggerBaseURL,
	}
}

// Transaction kinds written to a user's ledger.
const (
	TxAdReward = "ad_reward"
	TxBonus    = "bonus"
)

// Transaction is one balance change in a user's ledger.
type Transaction struct {
	Kind    string            `json:"kind"`
	Amount  int64             `json:"amount"`
	Details map[string]string `json:"details,omitempty"`
	At      time.Time         `json:"at"`
}
