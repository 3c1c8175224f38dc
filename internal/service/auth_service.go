package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/maatcontabil/portal/internal/auth"
	"github.com/maatcontabil/portal/internal/user"
)

// Audience única do portal; admins e clientes compartilham o mesmo fluxo
// e se distinguem pelos papéis do token.
const AudiencePortal = "portal"

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
)

type authRepository interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*user.Company, error)
	InsertRefreshToken(ctx context.Context, token user.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*user.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, hash string) error
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra regras de autenticação e sessões do portal.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
}

// NewAuthService cria novo serviço.
func NewAuthService(repo authRepository, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: repo, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// JWT expõe o gerenciador (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// Profile descreve o usuário autenticado para o front.
type Profile struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Role    string          `json:"role"`
	Company *CompanyProfile `json:"company,omitempty"`
}

// CompanyProfile resume a empresa do cliente.
type CompanyProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CNPJ    string `json:"cnpj"`
	Contact string `json:"contact"`
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	Subject       uuid.UUID
	Roles         []string
	Profile       *Profile
	RefreshHash   string
	RefreshExpiry time.Time
}

// Login autentica admins e clientes do portal.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, u.PasswordHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificação de senha falhou")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, u)
}

func (s *AuthService) issueSession(ctx context.Context, u *user.User) (*LoginResult, error) {
	if !u.Active {
		return nil, ErrAccountDisabled
	}

	roles := rolesFor(u)
	token, _, err := s.jwt.GenerateAccessToken(u.ID.String(), AudiencePortal, roles)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, u.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	profile, err := s.buildProfile(ctx, u)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Subject:       u.ID,
		Roles:         roles,
		Profile:       profile,
		RefreshHash:   refreshHash,
		RefreshExpiry: expires,
	}, nil
}

// Refresh troca o refresh token por uma sessão nova (rotação).
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if record.Revoked || time.Now().UTC().After(record.ExpiresAt) || record.Audience != AudiencePortal {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(AudiencePortal, hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	u, err := s.repo.GetByID(ctx, record.Subject)
	if err != nil {
		return nil, err
	}

	result, err := s.issueSession(ctx, u)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	return result, nil
}

// Logout revoga o refresh token atual.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, user.ErrNotFound) {
		return err
	}
	redisKey := auth.RefreshRedisKey(AudiencePortal, hash)
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GetMe devolve o perfil do sujeito autenticado.
func (s *AuthService) GetMe(ctx context.Context, subject uuid.UUID) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	return s.buildProfile(ctx, u)
}

// GetUser expõe o usuário completo para os handlers montarem o viewer.
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AuthService) buildProfile(ctx context.Context, u *user.User) (*Profile, error) {
	profile := &Profile{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
	if u.CompanyID != nil {
		company, err := s.repo.GetCompany(ctx, *u.CompanyID)
		if err != nil && !errors.Is(err, user.ErrCompanyNotFound) {
			return nil, err
		}
		if company != nil {
			profile.Company = &CompanyProfile{
				ID:      company.ID.String(),
				Name:    company.Name,
				CNPJ:    company.CNPJ,
				Contact: company.Contact,
			}
		}
	}
	return profile, nil
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, hash string, expires time.Time) error {
	record := user.RefreshToken{
		ID:        uuid.New(),
		Subject:   subject,
		Audience:  AudiencePortal,
		TokenHash: hash,
		ExpiresAt: expires,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertRefreshToken(ctx, record); err != nil {
		return err
	}

	redisKey := auth.RefreshRedisKey(AudiencePortal, hash)
	ttl := time.Until(expires)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.redis.Set(ctx, redisKey, "active", ttl).Err()
}

func rolesFor(u *user.User) []string {
	if u.Role == user.RoleAdmin {
		return []string{"ADMIN"}
	}
	return []string{"CLIENT"}
}
