package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chathub/internal/models"
	"chathub/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

// MailPublisher hands outbound mail to the notification pipeline. Actual
// delivery is someone else's job.
type MailPublisher interface {
	PublishMail(ctx context.Context, to, subject, body string) error
}

// UserStore is the subset of persistence the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
}

// Service issues and verifies identity. It is the websocket router's
// IdentityResolver: Verify turns a bearer token into a user ID.
type Service struct {
	store     UserStore
	mail      MailPublisher
	jwtSecret string
	jwtExpire time.Duration
	otpTTL    time.Duration
	now       func() time.Time
	log       *logger.Logger
}

func NewService(store UserStore, mail MailPublisher, jwtSecret string, jwtExpire, otpTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		mail:      mail,
		jwtSecret: jwtSecret,
		jwtExpire: jwtExpire,
		otpTTL:    otpTTL,
		now:       time.Now,
		log:       log,
	}
}

// Register creates an account with a bcrypt-hashed password and a generated
// avatar, then signs a token so the client is logged in immediately.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	if _, err := s.store.FindByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Email:      req.Email,
		Password:   string(hashed),
		ProfilePic: "https://ui-avatars.com/api/?name=" + url.QueryEscape(req.Name) + "&background=random&bold=true",
		About:      "Hello World!!",
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.sign(user.ID)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{AuthToken: token, User: user.ToResponse()}, nil
}

// Login authenticates by password or by one-time code. OTP expiry is a
// persisted timestamp checked here, so pending codes survive restarts; a
// used code is cleared.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password == "" && req.OTP == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if req.OTP != "" {
		if err := s.checkOTP(user, req.OTP); err != nil {
			return nil, err
		}
		user.OTPHash = ""
		user.OTPExpiresAt = nil
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	} else {
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}

	token, err := s.sign(user.ID)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{AuthToken: token, User: user.ToResponse()}, nil
}

// SendOTP issues a fresh six-digit code. Only its bcrypt hash is stored;
// issuing a new code invalidates any prior unexpired one.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	expires := s.now().Add(s.otpTTL)
	user.OTPHash = string(hash)
	user.OTPExpiresAt = &expires
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return err
	}

	body := fmt.Sprintf("<h2>Your login code</h2><h1>%s</h1><p>This code expires in %d minutes.</p>",
		code, int(s.otpTTL.Minutes()))
	if err := s.mail.PublishMail(ctx, email, "Your Login OTP", body); err != nil {
		return err
	}
	s.log.Info("otp issued", "email", email, "expiresAt", expires)
	return nil
}

func (s *Service) checkOTP(user *models.User, code string) error {
	if user.OTPHash == "" || user.OTPExpiresAt == nil {
		return ErrInvalidCredentials
	}
	if s.now().After(*user.OTPExpiresAt) {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.OTPHash), []byte(code)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// UpdateProfile applies profile edits; a password change requires the old
// password to match.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.NewPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
			return nil, ErrInvalidCredentials
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(hashed)
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.About != "" {
		user.About = req.About
	}
	if req.ProfilePic != "" {
		user.ProfilePic = req.ProfilePic
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return s.store.FindByID(ctx, userID)
}

/** -------------------- tokens -------------------- */

func (s *Service) sign(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": s.now().Add(s.jwtExpire).Unix(),
		"iat": s.now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// Verify parses and validates a bearer token and returns the user ID it
// carries. This is the identity resolver the websocket core trusts.
func (s *Service) Verify(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidCredentials
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidCredentials
	}
	return sub, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
