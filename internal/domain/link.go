package domain

import "time"

// Unknown is the sentinel written into any enrichment field that could not
// be derived from the raw click event.
const Unknown = "Unknown"

// ShortLink is one shortening mapping. ShortID is immutable once assigned;
// only the destination, active flag and expiry may change afterwards.
type ShortLink struct {
	ID          int64      `json:"id" db:"id"`
	ShortID     string     `json:"short_id" db:"short_code"`
	OriginalURL string     `json:"original_url" db:"original_url"`
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	ClickCount  int64      `json:"click_count" db:"click_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsExpired reports whether the link's expiry instant has passed.
// An expired link is unusable regardless of IsActive.
func (l *ShortLink) IsExpired(now time.Time) bool {
	if l.ExpiresAt == nil {
		return false
	}
	return !now.Before(*l.ExpiresAt)
}

// Clone returns a copy safe to hand out across goroutine boundaries.
func (l *ShortLink) Clone() *ShortLink {
	c := *l
	if l.ExpiresAt != nil {
		exp := *l.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

// LinkPatch carries the owner-editable fields of a ShortLink. Nil fields are
// left untouched; ClearExpiry removes an existing expiry.
type LinkPatch struct {
	OriginalURL *string
	IsActive    *bool
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// DeviceInfo is the parsed shape of a raw user-agent string. Every field
// defaults to Unknown when parsing fails; Type is one of desktop, mobile,
// tablet or Unknown.
type DeviceInfo struct {
	Type    string `json:"type" db:"device"`
	OS      string `json:"os" db:"os"`
	Browser string `json:"browser" db:"browser"`
}

// Location is the geo shape resolved from a click's IP address.
type Location struct {
	Country   string   `json:"country" db:"country"`
	City      string   `json:"city" db:"city"`
	Latitude  *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" db:"longitude"`
}

// Click is one recorded visit to a ShortLink. Records are immutable once
// persisted and are removed only by link deletion or retention policy.
type Click struct {
	ID        int64      `json:"id" db:"id"`
	ShortID   string     `json:"short_id" db:"short_code"`
	Timestamp time.Time  `json:"timestamp" db:"created_at"`
	Location  Location   `json:"location"`
	Device    DeviceInfo `json:"device"`
	Referrer  string     `json:"referrer,omitempty" db:"referrer"`
	IPAddress string     `json:"-" db:"ip_address"`
}

// RawClick is the event the redirect path hands to the click pipeline before
// any enrichment has happened.
type RawClick struct {
	ShortID   string
	OwnerID   string
	Timestamp time.Time
	UserAgent string
	IPAddress string
	Referrer  string
}

type CreateLinkRequest struct {
	OriginalURL string  `json:"original_url" binding:"required"`
	CustomAlias *string `json:"custom_alias,omitempty"`
	ExpiresIn   *int64  `json:"expires_in,omitempty"`
}

type CreateLinkResponse struct {
	ShortID     string     `json:"short_id"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type UpdateLinkRequest struct {
	OriginalURL *string `json:"original_url,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	ExpiresIn   *int64  `json:"expires_in,omitempty"`
	ClearExpiry bool    `json:"clear_expiry,omitempty"`
}

type LinkStats struct {
	ShortID     string     `json:"short_id"`
	ClickCount  int64      `json:"click_count"`
	LastClicked *time.Time `json:"last_clicked,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
