package domain

import "time"

// UnlimitedQuota is the plan-limit sentinel meaning no cap.
const UnlimitedQuota = int64(-1)

// Plan holds the limits a subscription is billed against.
type Plan struct {
	Name      string `json:"name"`
	MaxLinks  int64  `json:"max_links"`
	MaxClicks int64  `json:"max_clicks"`
}

// Subscription is what the external billing system reports for an owner:
// the active subscription, its plan and the current billing period.
type Subscription struct {
	ID          string    `json:"subscription_id"`
	OwnerID     string    `json:"owner_id"`
	Plan        Plan      `json:"plan"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// Usage is a point-in-time snapshot of a subscription's consumed quota.
type Usage struct {
	SubscriptionID string    `json:"subscription_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	LinksUsed      int64     `json:"links_used"`
	ClicksUsed     int64     `json:"clicks_used"`
	MaxLinks       int64     `json:"max_links"`
	MaxClicks      int64     `json:"max_clicks"`
}
