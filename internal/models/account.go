package models

import (
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// MaxRefreshTokens bounds the live refresh-token list per account.
const MaxRefreshTokens = 5

var ErrNoCredential = errors.New("account needs a password or a linked identity provider")

// Account is an operator identity.
type Account struct {
	Base
	FirstName    string  `gorm:"size:50;not null" json:"firstName"`
	LastName     string  `gorm:"size:50;not null" json:"lastName"`
	Email        string  `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string  `gorm:"column:password_hash" json:"-"`
	GoogleID     *string `gorm:"size:64;uniqueIndex" json:"googleId,omitempty"`
	AvatarURL    string  `gorm:"size:512" json:"avatarUrl,omitempty"`
	Phone        string  `gorm:"size:32" json:"phone,omitempty"`
	Timezone     string  `gorm:"size:64" json:"timezone"`

	Role          Role                              `gorm:"type:varchar(16);index;not null" json:"role"`
	Permissions   datatypes.JSONSlice[Permission]   `gorm:"type:jsonb" json:"permissions"`
	IsActive      bool                              `gorm:"index;not null" json:"isActive"`
	IsVerified    bool                              `gorm:"not null" json:"isVerified"`
	Preferences   Preferences                       `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`
	RefreshTokens datatypes.JSONSlice[RefreshToken] `gorm:"type:jsonb" json:"-"`

	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	LoginCount   int        `gorm:"not null;default:0" json:"loginCount"`

	PasswordResetHash    string     `gorm:"size:64;index" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	VerificationHash     string     `gorm:"size:64;index" json:"-"`
	VerificationExpires  *time.Time `json:"-"`

	CreatedBy string `gorm:"size:36" json:"createdBy,omitempty"`
	UpdatedBy string `gorm:"size:36" json:"updatedBy,omitempty"`
}

type Preferences struct {
	Theme              string `gorm:"size:16" json:"theme"`
	Language           string `gorm:"size:8" json:"language"`
	EmailNotifications bool   `json:"emailNotifications"`
	PushNotifications  bool   `json:"pushNotifications"`
	LeadUpdates        bool   `json:"leadUpdates"`
	CampaignAlerts     bool   `json:"campaignAlerts"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Theme:              "system",
		Language:           "en",
		EmailNotifications: true,
		PushNotifications:  true,
		LeadUpdates:        true,
		CampaignAlerts:     true,
	}
}

// RefreshToken is one live refresh-token record; only the token hash is kept.
type RefreshToken struct {
	TokenHash string    `json:"tokenHash"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

func (a *Account) Initials() string {
	var b strings.Builder
	for _, part := range []string{a.FirstName, a.LastName} {
		if part != "" {
			b.WriteString(strings.ToUpper(part[:1]))
		}
	}
	return b.String()
}

// HasPermission is true for admins and for explicitly granted permissions.
func (a *Account) HasPermission(p Permission) bool {
	if a.Role == RoleAdmin {
		return true
	}
	for _, granted := range a.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// SetRole changes the role and resets permissions to the role's defaults.
func (a *Account) SetRole(role Role) {
	a.Role = role
	a.Permissions = PermissionsForRole(role)
}

// AddRefreshToken appends rec and evicts the oldest records beyond MaxRefreshTokens.
func (a *Account) AddRefreshToken(rec RefreshToken) {
	a.RefreshTokens = append(a.RefreshTokens, rec)
	if over := len(a.RefreshTokens) - MaxRefreshTokens; over > 0 {
		sort.SliceStable(a.RefreshTokens, func(i, j int) bool {
			return a.RefreshTokens[i].CreatedAt.Before(a.RefreshTokens[j].CreatedAt)
		})
		a.RefreshTokens = append(datatypes.JSONSlice[RefreshToken]{}, a.RefreshTokens[over:]...)
	}
}

// RemoveRefreshToken drops the record for hash and reports whether one existed.
func (a *Account) RemoveRefreshToken(hash string) bool {
	kept := a.RefreshTokens[:0]
	removed := false
	for _, rec := range a.RefreshTokens {
		if rec.TokenHash == hash {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	a.RefreshTokens = kept
	return removed
}

// HasRefreshToken reports whether hash is a live, unexpired record.
func (a *Account) HasRefreshToken(hash string, now time.Time) bool {
	for _, rec := range a.RefreshTokens {
		if rec.TokenHash == hash && now.Before(rec.ExpiresAt) {
			return true
		}
	}
	return false
}

func (a *Account) ClearRefreshTokens() {
	a.RefreshTokens = datatypes.JSONSlice[RefreshToken]{}
}

// PruneRefreshTokens drops expired records and returns how many were removed.
func (a *Account) PruneRefreshTokens(now time.Time) int {
	kept := a.RefreshTokens[:0]
	for _, rec := range a.RefreshTokens {
		if now.Before(rec.ExpiresAt) {
			kept = append(kept, rec)
		}
	}
	removed := len(a.RefreshTokens) - len(kept)
	a.RefreshTokens = kept
	return removed
}

// RecordLogin bumps the login counter and activity timestamps.
func (a *Account) RecordLogin(now time.Time) {
	a.LoginCount++
	a.LastLogin = timePtr(now)
	a.LastActivity = timePtr(now)
}

// PasswordResetValid reports whether a reset hash is pending and unexpired.
func (a *Account) PasswordResetValid(now time.Time) bool {
	return a.PasswordResetHash != "" && a.PasswordResetExpires != nil && now.Before(*a.PasswordResetExpires)
}

func (a *Account) ClearPasswordReset() {
	a.PasswordResetHash = ""
	a.PasswordResetExpires = nil
}

func (a *Account) VerificationValid(now time.Time) bool {
	return a.VerificationHash != "" && a.VerificationExpires != nil && now.Before(*a.VerificationExpires)
}

func (a *Account) MarkVerified() {
	a.IsVerified = true
	a.VerificationHash = ""
	a.VerificationExpires = nil
}

// Normalize canonicalises the email and fills defaults, then checks that the
// account still has a way to sign in.
func (a *Account) Normalize() error {
	a.Email = NormalizeEmail(a.Email)
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	if a.GoogleID != nil && *a.GoogleID == "" {
		a.GoogleID = nil
	}
	if a.Timezone == "" {
		a.Timezone = "UTC"
	}
	if a.Permissions == nil {
		a.Permissions = PermissionsForRole(a.Role)
	}
	if a.RefreshTokens == nil {
		a.RefreshTokens = datatypes.JSONSlice[RefreshToken]{}
	}
	if a.PasswordHash == "" && a.GoogleID == nil {
		return ErrNoCredential
	}
	return nil
}

// Clone returns a deep copy safe to mutate independently.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Permissions = append(datatypes.JSONSlice[Permission]{}, a.Permissions...)
	cp.RefreshTokens = append(datatypes.JSONSlice[RefreshToken]{}, a.RefreshTokens...)
	if a.GoogleID != nil {
		id := *a.GoogleID
		cp.GoogleID = &id
	}
	return &cp
}
