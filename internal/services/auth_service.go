package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"mdmc/internal/auth"
	"mdmc/internal/errs"
	"mdmc/internal/events"
	"mdmc/internal/models"
	"mdmc/internal/store"
	"mdmc/internal/utils/logger"
)

// TokenPair is returned by every sign-in path.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type Session struct {
	Account *models.Account `json:"user"`
	Tokens  TokenPair       `json:"tokens"`
}

type RegisterInput struct {
	FirstName string      `json:"firstName" validate:"required,max=50"`
	LastName  string      `json:"lastName" validate:"required,max=50"`
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,strong_password"`
	Role      models.Role `json:"role" validate:"omitempty,account_role"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfilePatch struct {
	FirstName   *string             `json:"firstName" validate:"omitempty,min=1,max=50"`
	LastName    *string             `json:"lastName" validate:"omitempty,min=1,max=50"`
	Phone       *string             `json:"phone" validate:"omitempty,max=32"`
	Timezone    *string             `json:"timezone" validate:"omitempty,max=64"`
	AvatarURL   *string             `json:"avatarUrl" validate:"omitempty,url"`
	Preferences *models.Preferences `json:"preferences"`
}

type AuthService struct {
	accounts store.AccountStore
	tokens   *auth.Tokens
	identity auth.IdentityProvider
	now      func() time.Time
	log      *logger.Logger
}

func NewAuthService(accounts store.AccountStore, tokens *auth.Tokens, identity auth.IdentityProvider) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		identity: identity,
		now:      time.Now,
		log:      logger.New("AUTH"),
	}
}

var errInvalidCredentials = errs.Unauthorized("Invalid email or password")

func invalidRefresh() error {
	return errs.Unauthorized("Invalid refresh token").WithCode(errs.CodeInvalidToken)
}

// Register creates a password account. Self-registration may not claim the
// admin role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	role := in.Role
	if role == "" {
		role = models.RoleAgent
	}
	if !role.Valid() {
		return nil, errs.Validationf("Unknown role %q", role)
	}
	if role == models.RoleAdmin {
		return nil, errs.Forbidden("Admin accounts can only be created by an administrator")
	}

	if _, err := s.accounts.FindBy(ctx, store.ByEmail, in.Email); err == nil {
		return nil, errs.Conflict("User with this email already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(s.log, err, "User")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, errs.Internal("Failed to register", err)
	}
	raw, verifyHash, err := auth.NewOneTimeToken()
	if err != nil {
		return nil, errs.Internal("Failed to register", err)
	}

	now := s.now()
	expires := now.Add(auth.VerificationTTL)
	account := &models.Account{
		FirstName:           in.FirstName,
		LastName:            in.LastName,
		Email:               in.Email,
		PasswordHash:        hash,
		IsActive:            true,
		Preferences:         models.DefaultPreferences(),
		VerificationHash:    verifyHash,
		VerificationExpires: &expires,
	}
	account.SetRole(role)
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errs.Conflict("User with this email already exists")
		}
		return nil, storeError(s.log, err, "User")
	}

	session, err := s.startSession(ctx, account.ID, false)
	if err != nil {
		return nil, err
	}

	s.log.Success("Registered %s as %s", account.Email, account.Role)
	mail := events.AccountMail{AccountID: account.ID, Email: account.Email, FirstName: account.FirstName}
	events.Emit(events.AccountRegistered, mail)
	mail.Token = raw
	events.Emit(events.AccountVerificationRequested, mail)
	return session, nil
}

// Login checks a password credential and opens a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	account, err := s.accounts.FindBy(ctx, store.ByEmail, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	ok, err := auth.CheckPassword(account.PasswordHash, in.Password)
	if err != nil {
		return nil, errs.Internal("Failed to verify credentials", err)
	}
	if !ok {
		return nil, errInvalidCredentials
	}
	if !account.IsActive {
		return nil, errs.Unauthorized("Account is deactivated. Please contact administrator.").WithCode(errs.CodeAccountInactive)
	}
	return s.startSession(ctx, account.ID, true)
}

// AdminLogin is Login restricted to admin accounts.
func (s *AuthService) AdminLogin(ctx context.Context, in LoginInput) (*Session, error) {
	account, err := s.accounts.FindBy(ctx, store.ByEmail, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.Unauthorized("Invalid admin credentials")
	}
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	if account.Role != models.RoleAdmin {
		ok, _ := auth.CheckPassword(account.PasswordHash, in.Password)
		if !ok {
			return nil, errs.Unauthorized("Invalid admin credentials")
		}
		return nil, errs.Forbidden("Administrator access required")
	}
	session, err := s.Login(ctx, in)
	if errors.Is(err, errInvalidCredentials) {
		return nil, errs.Unauthorized("Invalid admin credentials")
	}
	return session, err
}

// startSession mints a token pair and records the refresh token on the account.
func (s *AuthService) startSession(ctx context.Context, accountID string, countLogin bool) (*Session, error) {
	access, err := s.tokens.IssueAccessToken(accountID)
	if err != nil {
		return nil, errs.Internal("Failed to issue token", err)
	}
	refresh, expires, err := s.tokens.IssueRefreshToken(accountID)
	if err != nil {
		return nil, errs.Internal("Failed to issue token", err)
	}

	now := s.now()
	account, err := s.accounts.Mutate(ctx, accountID, func(a *models.Account) error {
		a.AddRefreshToken(models.RefreshToken{TokenHash: auth.HashToken(refresh), CreatedAt: now, ExpiresAt: expires})
		if countLogin {
			a.RecordLogin(now)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	return &Session{
		Account: account,
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    s.accessTTL(),
		},
	}, nil
}

func (s *AuthService) accessTTL() string {
	return s.tokens.AccessTTL().String()
}

// Refresh mints a new access token from a live refresh token. The refresh
// token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, errs.Validation("Refresh token is required")
	}
	id, err := s.tokens.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, invalidRefresh()
	}

	now := s.now()
	hash := auth.HashToken(refreshToken)
	_, err = s.accounts.Mutate(ctx, id, func(a *models.Account) error {
		if !a.HasRefreshToken(hash, now) {
			return invalidRefresh()
		}
		if !a.IsActive {
			return errs.Unauthorized("Account is deactivated").WithCode(errs.CodeAccountInactive)
		}
		a.LastActivity = &now
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalidRefresh()
	}
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}

	access, err := s.tokens.IssueAccessToken(id)
	if err != nil {
		return nil, errs.Internal("Failed to issue token", err)
	}
	return &TokenPair{AccessToken: access, ExpiresIn: s.accessTTL()}, nil
}

// Logout forgets one refresh token. An unknown token is not an error.
func (s *AuthService) Logout(ctx context.Context, accountID, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	hash := auth.HashToken(refreshToken)
	_, err := s.accounts.Mutate(ctx, accountID, func(a *models.Account) error {
		a.RemoveRefreshToken(hash)
		return nil
	})
	return storeError(s.log, err, "User")
}

// LogoutAll forgets every refresh token of the account.
func (s *AuthService) LogoutAll(ctx context.Context, accountID string) error {
	_, err := s.accounts.Mutate(ctx, accountID, func(a *models.Account) error {
		a.ClearRefreshTokens()
		return nil
	})
	return storeError(s.log, err, "User")
}

func (s *AuthService) Profile(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	return account, nil
}

// UpdateProfile changes the self-service fields only.
func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, p ProfilePatch) (*models.Account, error) {
	account, err := s.accounts.Mutate(ctx, accountID, func(a *models.Account) error {
		if p.FirstName != nil {
			a.FirstName = strings.TrimSpace(*p.FirstName)
		}
		if p.LastName != nil {
			a.LastName = strings.TrimSpace(*p.LastName)
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
		if a.FirstName == "" || a.LastName == "" {
			return errs.Validation("First and last name are required")
		}
		a.UpdatedBy = accountID
		return nil
	})
	if err != nil {
		return nil, storeError(s.log, err, "User")
	}
	return account, nil
}

// ChangePassword replaces the password and signs the account out everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, current, next string) error {
	hash, err := auth.HashPassword(next)
	if err != nil {
		return errs.Internal("Failed to change password", err)
	}
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return storeError(s.log, err, "User")
	}
	ok, err := auth.CheckPassword(account.PasswordHash, current)
	if err != nil {
		return errs.Internal("Failed to verify password", err)
	}
	if !ok {
		return errs.Unauthorized("Current password is incorrect")
	}

	_, err = s.accounts.Mutate(ctx, accountID, func(a *models.Account) error {
		if a.PasswordHash != account.PasswordHash {
			return errs.Conflict("Password was changed concurrently, please retry")
		}
		a.PasswordHash = hash
		a.ClearRefreshTokens()
		a.UpdatedBy = accountID
		return nil
	})
	if err != nil {
		return storeError(s.log, err, "User")
	}
	events.Emit(events.AccountPasswordChanged, events.RecordChange{ID: accountID, ActorID: accountID})
	return nil
}

// ForgotPassword starts a reset for email. It returns an empty token and no
// error for unknown addresses so callers cannot probe for accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	account, err := s.accounts.FindBy(ctx, store.ByEmail, email)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Debug("Password reset requested for unknown email")
		return "", nil
	}
	if err != nil {
		return "", storeError(s.log, err, "User")
	}

	raw, hash, err := auth.NewOneTimeToken()
	if err != nil {
		return "", errs.Internal("Error creating password reset token", err)
	}
	expires := s.now().Add(auth.PasswordResetTTL)
	_, err = s.accounts.Mutate(ctx, account.ID, func(a *models.Account) error {
		a.PasswordResetHash = hash
		a.PasswordResetExpires = &expires
		return nil
	})
	if err != nil {
		return "", storeError(s.log, err, "User")
	}

	events.Emit(events.AccountPasswordResetRequest, events.AccountMail{
		AccountID: account.ID, Email: account.Email, FirstName: account.FirstName, Token: raw,
	})
	return raw, nil
}

// ResetPassword consumes a reset token, sets the password and ends every session.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, next string) error {
	invalid := errs.Validation("Invalid or expired password reset token")
	if rawToken == "" {
		return invalid
	}
	account, err := s.accounts.FindBy(ctx, store.ByResetHash, auth.HashToken(rawToken))
	if errors.Is(err, store.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return storeError(s.log, err, "User")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return errs.Internal("Failed to reset password", err)
	}

	now := s.now()
	_, err = s.accounts.Mutate(ctx, account.ID, func(a *models.Account) error {
		if a.PasswordResetHash != account.PasswordResetHash || !a.PasswordResetValid(now) {
			return invalid
		}
		a.PasswordHash = hash
		a.ClearPasswordReset()
		a.ClearRefreshTokens()
		a.UpdatedBy = a.ID
		return nil
	})
	if err != nil {
		return storeError(s.log, err, "User")
	}
	events.Emit(events.AccountPasswordChanged, events.RecordChange{ID: account.ID, ActorID: account.ID, Detail: "reset"})
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	invalid := errs.Validation("Invalid or expired verification token")
	if rawToken == "" {
		return invalid
	}
	account, err := s.accounts.FindBy(ctx, store.ByVerification, auth.HashToken(rawToken))
	if errors.Is(err, store.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return storeError(s.log, err, "User")
	}

	now := s.now()
	_, err = s.accounts.Mutate(ctx, account.ID, func(a *models.Account) error {
		if !a.VerificationValid(now) {
			return invalid
		}
		a.MarkVerified()
		return nil
	})
	return storeError(s.log, err, "User")
}

// ResendVerification issues a fresh verification token and returns it.
func (s *AuthService) ResendVerification(ctx context.Context, accountID string) (string, error) {
	raw, hash, err := auth.NewOneTimeToken()
	if err != nil {
		return "", errs.Internal("Error creating verification token", err)
	}
	expires := s.now().Add(auth.VerificationTTL)
	account, err := s.accounts.Mutate(ctx, accountID, func(a *models.Account) error {
		if a.IsVerified {
			return errs.Validation("Email is already verified")
		}
		a.VerificationHash = hash
		a.VerificationExpires = &expires
		return nil
	})
	if err != nil {
		return "", storeError(s.log, err, "User")
	}
	events.Emit(events.AccountVerificationRequested, events.AccountMail{
		AccountID: account.ID, Email: account.Email, FirstName: account.FirstName, Token: raw,
	})
	return raw, nil
}

// GoogleSignIn exchanges a provider access token and signs in the matching
// account: by provider id, then by email (linking it), else a new agent.
func (s *AuthService) GoogleSignIn(ctx context.Context, accessToken string) (*Session, error) {
	if s.identity == nil {
		return nil, errs.Internal("Google sign-in is not configured", nil)
	}
	id, err := s.identity.Exchange(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindBy(ctx, store.ByGoogleID, id.ProviderID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		account, err = s.linkOrCreate(ctx, id)
		if err != nil {
			return nil, err
		}
	default:
		return nil, storeError(s.log, err, "User")
	}

	if !account.IsActive {
		return nil, errs.Unauthorized("Account is deactivated. Please contact administrator.").WithCode(errs.CodeAccountInactive)
	}
	return s.startSession(ctx, account.ID, true)
}

func (s *AuthService) linkOrCreate(ctx context.Context, id *auth.Identity) (*models.Account, error) {
	providerID := id.ProviderID

	existing, err := s.accounts.FindBy(ctx, store.ByEmail, id.Email)
	if err == nil {
		linked, err := s.accounts.Mutate(ctx, existing.ID, func(a *models.Account) error {
			a.GoogleID = &providerID
			a.IsVerified = true
			if a.AvatarURL == "" {
				a.AvatarURL = id.AvatarURL
			}
			return nil
		})
		if err != nil {
			return nil, storeError(s.log, err, "User")
		}
		s.log.Info("Linked Google identity to %s", linked.Email)
		return linked, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(s.log, err, "User")
	}

	first, last := id.GivenName, id.FamilyName
	if first == "" {
		first = strings.Split(id.Email, "@")[0]
	}
	if last == "" {
		last = "-"
	}
	account := &models.Account{
		FirstName:   first,
		LastName:    last,
		Email:       id.Email,
		GoogleID:    &providerID,
		AvatarURL:   id.AvatarURL,
		IsActive:    true,
		IsVerified:  true,
		Preferences: models.DefaultPreferences(),
	}
	account.SetRole(models.RoleAgent)
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, storeError(s.log, err, "User")
	}
	s.log.Success("Created account %s from Google sign-in", account.Email)
	events.Emit(events.AccountRegistered, events.AccountMail{AccountID: account.ID, Email: account.Email, FirstName: account.FirstName})
	return account, nil
}
