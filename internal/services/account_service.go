package services

import (
	"context"
	"errors"
	"time"

	"mdmc/internal/auth"
	"mdmc/internal/errs"
	"mdmc/internal/events"
	"mdmc/internal/models"
	"mdmc/internal/store"
	"mdmc/internal/utils/logger"
)

var accountSortable = map[string]string{
	"createdAt": "created_at",
	"email":     "email",
	"firstName": "first_name",
	"lastName":  "last_name",
	"lastLogin": "last_login",
	"role":      "role",
}

type AccountListParams struct {
	PageParams
	Role     models.Role `query:"role"`
	IsActive *bool
	Search   string `query:"search"`
}

type CreateAccountInput struct {
	FirstName   string              `json:"firstName" validate:"required,max=50"`
	LastName    string              `json:"lastName" validate:"required,max=50"`
	Email       string              `json:"email" validate:"required,email"`
	Password    string              `json:"password" validate:"required,strong_password"`
	Role        models.Role         `json:"role" validate:"omitempty,account_role"`
	Permissions []models.Permission `json:"permissions" validate:"omitempty,dive,permission"`
	Phone       string              `json:"phone" validate:"omitempty,max=32"`
	IsActive    *bool               `json:"isActive"`
}

// AccountPatch is a partial account update. Role and IsActive are admin-only.
type AccountPatch struct {
	FirstName   *string             `json:"firstName" validate:"omitempty,min=1,max=50"`
	LastName    *string             `json:"lastName" validate:"omitempty,min=1,max=50"`
	Phone       *string             `json:"phone" validate:"omitempty,max=32"`
	Timezone    *string             `json:"timezone" validate:"omitempty,max=64"`
	AvatarURL   *string             `json:"avatarUrl" validate:"omitempty,url"`
	Preferences *models.Preferences `json:"preferences"`
	Role        *models.Role        `json:"role" validate:"omitempty,account_role"`
	IsActive    *bool               `json:"isActive"`
}

type AccountBulkPatch struct {
	IsActive *bool        `json:"isActive"`
	Role     *models.Role `json:"role" validate:"omitempty,account_role"`
}

type AccountStats struct {
	Total        int64            `json:"total"`
	Active       int64            `json:"active"`
	Inactive     int64            `json:"inactive"`
	Verified     int64            `json:"verified"`
	RecentLogins int64            `json:"recentLogins"`
	ByRole       map[string]int64 `json:"byRole"`
}

type AccountActivity struct {
	AccountID        string     `json:"userId"`
	LastLogin        *time.Time `json:"lastLogin"`
	LastActivity     *time.Time `json:"lastActivity"`
	LoginCount       int        `json:"loginCount"`
	AssignedLeads    int64      `json:"assignedLeads"`
	ManagedCampaigns int64      `json:"managedCampaigns"`
}

type AccountService struct {
	accounts  store.AccountStore
	leads     store.LeadStore
	campaigns store.CampaignStore
	now       func() time.Time
	log       *logger.Logger
}

func NewAccountService(accounts store.AccountStore, leads store.LeadStore, campaigns store.CampaignStore) *AccountService {
	return &AccountService{
		accounts:  accounts,
		leads:     leads,
		campaigns: campaigns,
		now:       time.Now,
		log:       logger.New("ACCOUNTS"),
	}
}

func (s *AccountService) List(ctx context.Context, p AccountListParams) ([]models.Account, Pagination, error) {
	q := store.Query{}
	if p.Role != "" {
		if !p.Role.Valid() {
			return nil, Pagination{}, errs.Validationf("Unknown role %q", p.Role)
		}
		q = q.Where("role", string(p.Role))
	}
	if p.IsActive != nil {
		q = q.Where("is_active", *p.IsActive)
	}
	if p.Search != "" {
		q.Search = p.Search
		q.SearchFields = []string{"first_name", "last_name", "email"}
	}
	q, err := p.apply(q, accountSortable)
	if err != nil {
		return nil, Pagination{}, err
	}

	accounts, total, err := s.accounts.List(ctx, q)
	if err != nil {
		return nil, Pagination{}, storeError(s.log, err, "User")
	}
	return accounts, NewPagination(q.Page, q.Limit, total), nil
}

func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	return account, nil
}

// Create adds an account on behalf of an admin.
func (s *AccountService) Create(ctx context.Context, in CreateAccountInput, actor *models.Account) (*models.Account, error) {
	if !isAdmin(actor) {
		return nil, errs.Forbidden("Only administrators can create users")
	}
	role := in.Role
	if role == "" {
		role = models.RoleAgent
	}
	if !role.Valid() {
		return nil, errs.Validationf("Unknown role %q", role)
	}
	if err := validPermissions(in.Permissions); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, errs.Internal("Failed to create user", err)
	}
	account := &models.Account{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		IsActive:     in.IsActive == nil || *in.IsActive,
		Preferences:  models.DefaultPreferences(),
		CreatedBy:    actor.ID,
	}
	account.SetRole(role)
	if len(in.Permissions) > 0 {
		account.Permissions = append(account.Permissions[:0], in.Permissions...)
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errs.Conflict("User with this email already exists")
		}
		return nil, storeError(s.log, err, "User")
	}
	s.log.Success("%s created user %s (%s)", actor.Email, account.Email, account.Role)
	return account, nil
}

// Update applies p to account id. Admins and managers may edit anyone, other
// roles only themselves; role and activation are admin-only.
func (s *AccountService) Update(ctx context.Context, id string, p AccountPatch, actor *models.Account) (*models.Account, error) {
	if actor.ID != id && !actor.Role.In(models.RoleAdmin, models.RoleManager) {
		return nil, errs.Forbidden("You can only update your own profile")
	}
	if (p.Role != nil || p.IsActive != nil) && !isAdmin(actor) {
		return nil, errs.Forbidden("Only administrators can change roles or account status")
	}
	if p.Role != nil && !p.Role.Valid() {
		return nil, errs.Validationf("Unknown role %q", *p.Role)
	}
	if p.IsActive != nil && !*p.IsActive && actor.ID == id {
		return nil, errs.Validation("You cannot deactivate your own account")
	}

	account, err := s.accounts.Mutate(ctx, id, func(a *models.Account) error {
		if p.FirstName != nil {
			a.FirstName = *p.FirstName
		}
		if p.LastName != nil {
			a.LastName = *p.LastName
		}
		if p.Phone != nil {
			a.Phone = *p.Phone
		}
		if p.Timezone != nil {
			a.Timezone = *p.Timezone
		}
		if p.AvatarURL != nil {
			a.AvatarURL = *p.AvatarURL
		}
		if p.Preferences != nil {
			a.Preferences = *p.Preferences
		}
		if p.Role != nil && *p.Role != a.Role {
			a.SetRole(*p.Role)
		}
		if p.IsActive != nil {
			a.IsActive = *p.IsActive
			if !a.IsActive {
				a.ClearRefreshTokens()
			}
		}
		a.UpdatedBy = actor.ID
		return nil
	})
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	if p.Role != nil {
		events.Emit(events.AccountRoleChanged, events.RecordChange{ID: id, ActorID: actor.ID, Detail: string(*p.Role)})
	}
	return account, nil
}

// Deactivate switches the account off and drops its sessions.
func (s *AccountService) Deactivate(ctx context.Context, id string, actor *models.Account) error {
	if !isAdmin(actor) {
		return errs.Forbidden("Only administrators can deactivate users")
	}
	if actor.ID == id {
		return errs.Validation("You cannot deactivate your own account")
	}
	_, err := s.accounts.Mutate(ctx, id, func(a *models.Account) error {
		a.IsActive = false
		a.ClearRefreshTokens()
		a.UpdatedBy = actor.ID
		return nil
	})
	if err != nil {
		return storeError(s.log, err, "User")
	}
	s.log.Warn("%s deactivated user %s", actor.Email, id)
	events.Emit(events.AccountDeactivated, events.RecordChange{ID: id, ActorID: actor.ID})
	return nil
}

func (s *AccountService) Activate(ctx context.Context, id string, actor *models.Account) (*models.Account, error) {
	if !isAdmin(actor) {
		return nil, errs.Forbidden("Only administrators can activate users")
	}
	account, err := s.accounts.Mutate(ctx, id, func(a *models.Account) error {
		a.IsActive = true
		a.UpdatedBy = actor.ID
		return nil
	})
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	return account, nil
}

// ChangeRole sets the role and resets permissions to that role's defaults.
func (s *AccountService) ChangeRole(ctx context.Context, id string, role models.Role, actor *models.Account) (*models.Account, error) {
	if !isAdmin(actor) {
		return nil, errs.Forbidden("Only administrators can change roles")
	}
	if !role.Valid() {
		return nil, errs.Validationf("Unknown role %q", role)
	}
	if actor.ID == id && role != models.RoleAdmin {
		return nil, errs.Validation("You cannot remove your own administrator role")
	}
	account, err := s.accounts.Mutate(ctx, id, func(a *models.Account) error {
		a.SetRole(role)
		a.UpdatedBy = actor.ID
		return nil
	})
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	events.Emit(events.AccountRoleChanged, events.RecordChange{ID: id, ActorID: actor.ID, Detail: string(role)})
	return account, nil
}

func (s *AccountService) GetPermissions(ctx context.Context, id string, actor *models.Account) ([]models.Permission, error) {
	if !isAdmin(actor) {
		return nil, errs.Forbidden("Only administrators can view permissions")
	}
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	return account.Permissions, nil
}

// UpdatePermissions replaces the explicit permission set of a non-admin account.
func (s *AccountService) UpdatePermissions(ctx context.Context, id string, perms []models.Permission, actor *models.Account) (*models.Account, error) {
	if !isAdmin(actor) {
		return nil, errs.Forbidden("Only administrators can change permissions")
	}
	if err := validPermissions(perms); err != nil {
		return nil, err
	}
	account, err := s.accounts.Mutate(ctx, id, func(a *models.Account) error {
		a.Permissions = append(a.Permissions[:0:0], perms...)
		a.UpdatedBy = actor.ID
		return nil
	})
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	return account, nil
}

func validPermissions(perms []models.Permission) error {
	for _, p := range perms {
		if !p.Valid() {
			return errs.Validationf("Unknown permission %q", p)
		}
	}
	return nil
}

func (s *AccountService) Stats(ctx context.Context, actor *models.Account) (*AccountStats, error) {
	if err := requireRoles(actor, "Only administrators and managers can view user statistics", models.RoleManager); err != nil {
		return nil, err
	}

	byRole, err := s.accounts.Aggregate(ctx, store.Query{}, store.Aggregation{GroupBy: "role"})
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	stats := &AccountStats{ByRole: make(map[string]int64, len(models.Roles))}
	for _, role := range models.Roles {
		stats.ByRole[string(role)] = 0
	}
	for _, g := range byRole {
		stats.ByRole[g.Key] = g.Count
		stats.Total += g.Count
	}

	since := s.now().AddDate(0, 0, -30)
	counts := []struct {
		dst *int64
		q   store.Query
	}{
		{&stats.Active, store.Query{}.Where("is_active", true)},
		{&stats.Verified, store.Query{}.Where("is_verified", true)},
		{&stats.RecentLogins, store.Query{}.Between("last_login", &since, nil)},
	}
	for _, c := range counts {
		n, err := s.accounts.Count(ctx, c.q)
		if err != nil {
			return nil, storeError(s.log, err, "User")
		}
		*c.dst = n
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

// Activity summarises an account's usage. Non-managers may only see their own.
func (s *AccountService) Activity(ctx context.Context, id string, actor *models.Account) (*AccountActivity, error) {
	if actor.ID != id && !actor.Role.In(models.RoleAdmin, models.RoleManager) {
		return nil, errs.Forbidden("You can only view your own activity")
	}
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	leads, err := s.leads.Count(ctx, store.Query{}.Where("assigned_to", id))
	if err != nil {
		return nil, storeError(s.log, err, "Lead")
	}
	campaigns, err := s.campaigns.Count(ctx, store.Query{}.Where("manager_id", id))
	if err != nil {
		return nil, storeError(s.log, err, "Campaign")
	}
	return &AccountActivity{
		AccountID:        account.ID,
		LastLogin:        account.LastLogin,
		LastActivity:     account.LastActivity,
		LoginCount:       account.LoginCount,
		AssignedLeads:    leads,
		ManagedCampaigns: campaigns,
	}, nil
}

// BulkUpdate applies p to every account in ids or to none.
func (s *AccountService) BulkUpdate(ctx context.Context, ids []string, p AccountBulkPatch, actor *models.Account) ([]models.Account, error) {
	if !isAdmin(actor) {
		return nil, errs.Forbidden("Only administrators can bulk update users")
	}
	if len(ids) == 0 {
		return nil, errs.Validation("userIds must be a non-empty array")
	}
	if p.IsActive == nil && p.Role == nil {
		return nil, errs.Validation("Nothing to update")
	}
	if p.Role != nil && !p.Role.Valid() {
		return nil, errs.Validationf("Unknown role %q", *p.Role)
	}
	for _, id := range ids {
		if id == actor.ID {
			return nil, errs.Validation("You cannot bulk update your own account")
		}
	}

	updated, err := s.accounts.MutateMany(ctx, ids, func(a *models.Account) error {
		if p.IsActive != nil {
			a.IsActive = *p.IsActive
			if !a.IsActive {
				a.ClearRefreshTokens()
			}
		}
		if p.Role != nil {
			a.SetRole(*p.Role)
		}
		a.UpdatedBy = actor.ID
		return nil
	})
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	s.log.Info("%s bulk updated %d users", actor.Email, len(updated))
	return updated, nil
}

// PruneRefreshTokens drops expired refresh-token records from every account
// and returns how many records went.
func (s *AccountService) PruneRefreshTokens(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0
	page := 1
	for {
		accounts, _, err := s.accounts.List(ctx, store.Query{Sort: "created_at", Order: store.Asc, Page: page, Limit: MaxLimit})
		if err != nil {
			return removed, storeError(s.log, err, "User")
		}
		for _, a := range accounts {
			if !hasExpiredToken(&a, now) {
				continue
			}
			_, err := s.accounts.Mutate(ctx, a.ID, func(acc *models.Account) error {
				removed += acc.PruneRefreshTokens(now)
				return nil
			})
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return removed, storeError(s.log, err, "User")
			}
		}
		if len(accounts) < MaxLimit {
			return removed, nil
		}
		page++
	}
}

func hasExpiredToken(a *models.Account, now time.Time) bool {
	for _, rec := range a.RefreshTokens {
		if !now.Before(rec.ExpiresAt) {
			return true
		}
	}
	return false
}

// EnsureAdmin creates the bootstrap admin when no account uses email yet.
// It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password, firstName, lastName string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	_, err := s.accounts.FindBy(ctx, store.ByEmail, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, storeError(s.log, err, "User")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, errs.Internal("Failed to hash admin password", err)
	}
	if firstName == "" {
		firstName = "Admin"
	}
	if lastName == "" {
		lastName = "User"
	}
	admin := &models.Account{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   true,
		Preferences:  models.DefaultPreferences(),
	}
	admin.SetRole(models.RoleAdmin)
	if err := s.accounts.Create(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return false, nil
		}
		return false, storeError(s.log, err, "User")
	}
	s.log.Success("Created admin account %s", admin.Email)
	return true, nil
}
