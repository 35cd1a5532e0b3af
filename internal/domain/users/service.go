package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/medvault/medvault/internal/domain/actor"
	"github.com/medvault/medvault/internal/domain/managers"
	"github.com/medvault/medvault/internal/platform/auth"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers unknown email, wrong password and
	// insufficient privilege for the requested actor type, so login failures
	// do not reveal which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoManagerRecord is returned when a manager session is requested by a
	// user with no manager record in the directory.
	ErrNoManagerRecord = errors.New("user has no manager record")
)

type Service struct {
	repo   Repository
	dir    managers.Directory
	social SocialIdentityResolver
	tokens *auth.TokenIssuer
	now    func() time.Time
}

func NewService(repo Repository, dir managers.Directory, social SocialIdentityResolver, tokens *auth.TokenIssuer) *Service {
	return &Service{repo: repo, dir: dir, social: social, tokens: tokens, now: time.Now}
}

type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Email:        in.Email,
		PasswordHash: string(hash),
		DisplayName:  in.DisplayName,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type LoginInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	ActorType string `json:"actor_type"`
}

// Session is the result of a successful login.
type Session struct {
	Token string      `json:"token"`
	Actor actor.Actor `json:"actor"`
	User  *User       `json:"user"`
}

// Login verifies credentials and issues a token for the requested actor type.
// Admin sessions require the account's admin flag; manager sessions require a
// manager record in the directory.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	u, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, u, in.ActorType)
}

type SocialLoginInput struct {
	Provider   string `json:"provider"`
	Credential string `json:"credential"`
	ActorType  string `json:"actor_type"`
}

// LoginSocial resolves an external identity and logs the matching account in,
// creating it on first sight.
func (s *Service) LoginSocial(ctx context.Context, in SocialLoginInput) (*Session, error) {
	identity, err := s.social.Resolve(ctx, in.Provider, in.Credential)
	if err != nil {
		return nil, fmt.Errorf("resolve social identity: %w", err)
	}

	u, err := s.repo.FindByExternal(ctx, identity.Provider, identity.ExternalID)
	if errors.Is(err, ErrNotFound) {
		u = &User{
			Email:       strings.ToLower(identity.Email),
			DisplayName: identity.Name,
			Provider:    &identity.Provider,
			ExternalID:  &identity.ExternalID,
		}
		if err := s.repo.Create(ctx, u); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return s.startSession(ctx, u, in.ActorType)
}

func (s *Service) startSession(ctx context.Context, u *User, requestedType string) (*Session, error) {
	if requestedType == "" {
		requestedType = string(actor.TypeUser)
	}
	actorType, err := actor.ParseType(requestedType)
	if err != nil {
		return nil, err
	}

	switch actorType {
	case actor.TypeAdmin:
		if !u.IsAdmin {
			return nil, ErrInvalidCredentials
		}
	case actor.TypeManager:
		if _, err := s.dir.FindByUserID(ctx, u.ID); errors.Is(err, managers.ErrNotFound) {
			return nil, ErrNoManagerRecord
		} else if err != nil {
			return nil, err
		}
	}

	a := actor.Actor{Type: actorType, ID: u.ID}
	token, err := s.tokens.Issue(a)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if err := s.repo.TouchLogin(ctx, u.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	return &Session{Token: token, Actor: a, User: u}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}
