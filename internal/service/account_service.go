package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"impactflow/api/internal/config"
	"impactflow/api/internal/models"
	"impactflow/api/internal/otp"
	"impactflow/api/internal/ratelimit"
	"impactflow/api/internal/security"
	"impactflow/api/internal/storage"
	"impactflow/api/internal/store"
)

var (
	ErrDuplicateAccount     = errors.New("account already exists")
	ErrUnknownAccount       = errors.New("account not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNotVerified          = errors.New("account not verified")
	ErrPendingApproval      = errors.New("admin request pending approval")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrAlreadyVerified      = errors.New("account already verified")
	ErrForbidden            = errors.New("forbidden")
	ErrTooManyAttempts      = errors.New("too many attempts")
)

// AccountService drives the account lifecycle: registration, one-time-code
// verification, login, profile updates and the admin-approval gate.
type AccountService struct {
	gw       *store.Gateway
	otp      *otp.Dispatcher
	limiter  *ratelimit.Limiter
	images   *storage.ObjectStore
	security config.SecurityConfig
	otpCfg   config.OTPConfig
	log      zerolog.Logger
}

func NewAccountService(
	gw *store.Gateway,
	dispatcher *otp.Dispatcher,
	limiter *ratelimit.Limiter,
	images *storage.ObjectStore,
	securityCfg config.SecurityConfig,
	otpCfg config.OTPConfig,
	logger zerolog.Logger,
) *AccountService {
	return &AccountService{
		gw:       gw,
		otp:      dispatcher,
		limiter:  limiter,
		images:   images,
		security: securityCfg,
		otpCfg:   otpCfg,
		log:      logger,
	}
}

// AccountView is the sanitized account shape returned to callers. It never
// carries the password hash or pending-code fields.
type AccountView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	Role            string    `json:"role"`
	Image           string    `json:"image,omitempty"`
	IsVerified      bool      `json:"isVerified"`
	IsAdminApproved bool      `json:"isAdminApproved"`
	CreatedAt       time.Time `json:"createdAt"`
}

func viewOf(u models.User) AccountView {
	return AccountView{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Phone:           u.Phone,
		Role:            string(u.Role),
		Image:           u.Image,
		IsVerified:      u.IsVerified,
		IsAdminApproved: u.IsAdminApproved,
		CreatedAt:       u.CreatedAt,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Role     string
}

type RegisterResult struct {
	Account          AccountView
	RequiresApproval bool
}

// Register creates an account in the pending-verification state and issues a
// one-time code to the registered email. It never returns a token. The first
// admin ever registered is auto-approved; later admins start unapproved.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	role := models.Role(input.Role)
	if input.Role == "" {
		role = models.RoleVolunteer
	} else if !models.ValidRole(input.Role) {
		return RegisterResult{}, fmt.Errorf("unknown role %q", input.Role)
	}

	if _, err := s.gw.Users.FindOne(ctx, store.Predicate{"email": input.Email}); err == nil {
		return RegisterResult{}, ErrDuplicateAccount
	} else if !errors.Is(err, store.ErrNotFound) {
		return RegisterResult{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	// Volunteers and coordinators never need approval. An admin is approved
	// up front only when no approved admin exists yet.
	approved := true
	if role == models.RoleAdmin {
		existing, err := s.gw.Users.Find(ctx, store.Predicate{
			"role":            string(models.RoleAdmin),
			"isAdminApproved": true,
		})
		if err != nil {
			return RegisterResult{}, fmt.Errorf("count approved admins: %w", err)
		}
		approved = len(existing) == 0
	}

	user, err := s.gw.Users.Create(ctx, models.User{
		Name:            input.Name,
		Email:           input.Email,
		Phone:           input.Phone,
		PasswordHash:    hash,
		Role:            role,
		IsVerified:      false,
		IsAdminApproved: approved,
	})
	if err != nil {
		return RegisterResult{}, fmt.Errorf("create account: %w", err)
	}

	if err := s.otp.IssueCode(ctx, user.ID, user.Email); err != nil {
		return RegisterResult{}, fmt.Errorf("issue code: %w", err)
	}

	s.log.Info().
		Str("account_id", user.ID).
		Str("role", string(user.Role)).
		Bool("admin_approved", approved).
		Msg("account registered, verification pending")

	return RegisterResult{
		Account:          viewOf(user),
		RequiresApproval: user.Role == models.RoleAdmin && !approved,
	}, nil
}

type AuthResult struct {
	Token            string
	Account          AccountView
	RequiresApproval bool
}

// VerifyCode completes the one-time-code check for the account registered
// under email. A verified non-gated account receives a session token; an
// unapproved admin gets RequiresApproval and no token.
func (s *AccountService) VerifyCode(ctx context.Context, email, code string) (AuthResult, error) {
	user, err := s.gw.Users.FindOne(ctx, store.Predicate{"email": email})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, ErrUnknownAccount
		}
		return AuthResult{}, fmt.Errorf("lookup email: %w", err)
	}

	limitKey := "otp:verify:" + user.ID
	if !s.limiter.Allow(ctx, limitKey, s.otpCfg.MaxVerifyAttempts, s.otpCfg.CodeTTL) {
		return AuthResult{}, ErrTooManyAttempts
	}

	updated, err := s.otp.VerifyCode(ctx, user.ID, code)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidCode) {
			return AuthResult{}, ErrInvalidOrExpiredCode
		}
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, ErrUnknownAccount
		}
		return AuthResult{}, fmt.Errorf("verify code: %w", err)
	}
	s.limiter.Reset(ctx, limitKey)

	if updated.Role == models.RoleAdmin && !updated.IsAdminApproved {
		return AuthResult{Account: viewOf(updated), RequiresApproval: true}, nil
	}

	token, err := security.SignToken(s.security.JWTSecret, updated.ID, string(updated.Role), s.security.TokenTTL)
	if err != nil {
		return AuthResult{}, fmt.Errorf("sign token: %w", err)
	}
	return AuthResult{Token: token, Account: viewOf(updated)}, nil
}

// ResendCode reissues a pending code for an unverified account, bounded by
// the resend limiter.
func (s *AccountService) ResendCode(ctx context.Context, email string) error {
	user, err := s.gw.Users.FindOne(ctx, store.Predicate{"email": email})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownAccount
		}
		return fmt.Errorf("lookup email: %w", err)
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if !s.limiter.Allow(ctx, "otp:resend:"+user.ID, s.otpCfg.MaxResends, s.otpCfg.ResendWindow) {
		return ErrTooManyAttempts
	}

	return s.otp.IssueCode(ctx, user.ID, user.Email)
}

// Login checks credentials and the lifecycle gates, then issues a token.
// Unknown account and wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.gw.Users.FindOne(ctx, store.Predicate{"email": email})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("lookup email: %w", err)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return AuthResult{}, ErrNotVerified
	}
	if user.Role == models.RoleAdmin && !user.IsAdminApproved {
		return AuthResult{}, ErrPendingApproval
	}

	token, err := security.SignToken(s.security.JWTSecret, user.ID, string(user.Role), s.security.TokenTTL)
	if err != nil {
		return AuthResult{}, fmt.Errorf("sign token: %w", err)
	}
	return AuthResult{Token: token, Account: viewOf(user)}, nil
}

type UpdateProfileInput struct {
	Name  *string
	Phone *string
	Image *string
}

// UpdateProfile merges only the provided fields. Role, verification and
// approval fields are never touched here. When a new image replaces one held
// in the object bucket, the old object is removed best-effort.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (AccountView, error) {
	user, err := s.gw.Users.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountView{}, ErrUnknownAccount
		}
		return AccountView{}, fmt.Errorf("lookup account: %w", err)
	}

	partial := store.Predicate{}
	if input.Name != nil && *input.Name != "" {
		partial["name"] = *input.Name
	}
	if input.Phone != nil && *input.Phone != "" {
		partial["phone"] = *input.Phone
	}
	if input.Image != nil && *input.Image != "" && *input.Image != user.Image {
		partial["image"] = *input.Image
		if user.Image != "" {
			if err := s.images.Remove(ctx, user.Image); err != nil {
				s.log.Warn().Err(err).
					Str("account_id", accountID).
					Msg("superseded profile image delete failed")
			}
		}
	}

	updated, err := s.gw.Users.Update(ctx, accountID, partial)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountView{}, ErrUnknownAccount
		}
		return AccountView{}, fmt.Errorf("update profile: %w", err)
	}
	return viewOf(updated), nil
}

// ListPendingAdmins returns verified admin accounts awaiting approval. Only
// an approved admin may call it.
func (s *AccountService) ListPendingAdmins(ctx context.Context, actingAdminID string) ([]AccountView, error) {
	if _, err := s.requireApprovedAdmin(ctx, actingAdminID); err != nil {
		return nil, err
	}

	pending, err := s.gw.Users.Find(ctx, store.Predicate{
		"role":            string(models.RoleAdmin),
		"isAdminApproved": false,
		"isVerified":      true,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending admins: %w", err)
	}

	views := make([]AccountView, 0, len(pending))
	for _, u := range pending {
		views = append(views, viewOf(u))
	}
	return views, nil
}

// Approve grants the admin role request of target, recording who approved it
// and when.
func (s *AccountService) Approve(ctx context.Context, actingAdminID, targetID string) (AccountView, error) {
	acting, err := s.requireApprovedAdmin(ctx, actingAdminID)
	if err != nil {
		return AccountView{}, err
	}

	if _, err := s.gw.Users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountView{}, ErrUnknownAccount
		}
		return AccountView{}, fmt.Errorf("lookup target: %w", err)
	}

	updated, err := s.gw.Users.Update(ctx, targetID, store.Predicate{
		"isAdminApproved": true,
		"approvedBy":      acting.ID,
		"approvedAt":      time.Now().UTC(),
	})
	if err != nil {
		return AccountView{}, fmt.Errorf("approve admin: %w", err)
	}

	s.log.Info().
		Str("target_id", targetID).
		Str("approved_by", acting.ID).
		Msg("admin request approved")
	return viewOf(updated), nil
}

// Reject demotes a pending admin to volunteer. The account is kept, and
// volunteers never require approval, so the flag is force-set true.
func (s *AccountService) Reject(ctx context.Context, actingAdminID, targetID string) (AccountView, error) {
	acting, err := s.requireApprovedAdmin(ctx, actingAdminID)
	if err != nil {
		return AccountView{}, err
	}

	if _, err := s.gw.Users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountView{}, ErrUnknownAccount
		}
		return AccountView{}, fmt.Errorf("lookup target: %w", err)
	}

	updated, err := s.gw.Users.Update(ctx, targetID, store.Predicate{
		"role":            string(models.RoleVolunteer),
		"isAdminApproved": true,
	})
	if err != nil {
		return AccountView{}, fmt.Errorf("reject admin: %w", err)
	}

	s.log.Info().
		Str("target_id", targetID).
		Str("rejected_by", acting.ID).
		Msg("admin request rejected, account demoted to volunteer")
	return viewOf(updated), nil
}

// ListAccounts returns every account sanitized, newest first.
func (s *AccountService) ListAccounts(ctx context.Context) ([]AccountView, error) {
	users, err := s.gw.Users.Find(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	views := make([]AccountView, 0, len(users))
	for _, u := range users {
		views = append(views, viewOf(u))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, nil
}

func (s *AccountService) requireApprovedAdmin(ctx context.Context, accountID string) (models.User, error) {
	user, err := s.gw.Users.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrForbidden
		}
		return models.User{}, fmt.Errorf("lookup acting admin: %w", err)
	}
	if user.Role != models.RoleAdmin || !user.IsAdminApproved {
		return models.User{}, ErrForbidden
	}
	return user, nil
}
