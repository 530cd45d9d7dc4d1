package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-timetable-proxy/internal/dto"
	"github.com/noah-isme/erp-timetable-proxy/internal/erp"
	"github.com/noah-isme/erp-timetable-proxy/internal/models"
	appErrors "github.com/noah-isme/erp-timetable-proxy/pkg/errors"
)

// TicketRepository stores single-use session tickets.
type TicketRepository interface {
	Save(ctx context.Context, ticket *models.SessionTicket) error
	// Take returns and deletes the ticket in one step.
	Take(ctx context.Context, token string) (*models.SessionTicket, error)
	Sweep(ctx context.Context, ttl time.Duration) (int, error)
}

// Portal is the upstream ERP as seen by the session service.
type Portal interface {
	RequestCaptcha(ctx context.Context) (*erp.Challenge, error)
	FetchTimetable(ctx context.Context, req erp.LoginRequest) (*models.Timetable, error)
}

// SessionConfig tunes ticket lifetime and term defaults.
type SessionConfig struct {
	TTL                 time.Duration
	DefaultAcademicYear string
	DefaultSemester     string
}

// SessionService bridges the CAPTCHA request and the later login submit
// through a single-use ticket.
type SessionService struct {
	tickets   TicketRepository
	portal    Portal
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	config    SessionConfig
	now       func() time.Time
	newToken  func() string
}

// NewSessionService constructs a SessionService.
func NewSessionService(tickets TicketRepository, portal Portal, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.DefaultAcademicYear == "" {
		config.DefaultAcademicYear = "19"
	}
	if config.DefaultSemester == "" {
		config.DefaultSemester = "1"
	}
	return &SessionService{
		tickets:   tickets,
		portal:    portal,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       time.Now,
		newToken:  uuid.NewString,
	}
}

func (s *SessionService) sweep(ctx context.Context) {
	removed, err := s.tickets.Sweep(ctx, s.config.TTL)
	if err != nil {
		s.logger.Warn("ticket sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("swept expired tickets", zap.Int("count", removed))
		s.metrics.RecordTicket(TicketSwept, removed)
	}
}

// IssueCaptcha opens a portal session and returns its CAPTCHA with a fresh ticket token.
func (s *SessionService) IssueCaptcha(ctx context.Context) (*models.CaptchaChallenge, error) {
	s.sweep(ctx)

	challenge, err := s.portal.RequestCaptcha(ctx)
	if err != nil {
		return nil, s.captchaError(err)
	}

	ticket := &models.SessionTicket{
		Token:     s.newToken(),
		CSRF:      challenge.CSRF,
		Cookies:   challenge.Cookies,
		CreatedAt: s.now().UTC(),
	}
	if err := s.tickets.Save(ctx, ticket); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	s.metrics.RecordTicket(TicketIssued, 1)

	return &models.CaptchaChallenge{
		Token:       ticket.Token,
		Image:       challenge.Image,
		ContentType: imageContentType(challenge.ContentType),
	}, nil
}

// FetchTimetable consumes the ticket, logs in and scrapes the timetable. The
// ticket is gone afterwards whatever the outcome.
func (s *SessionService) FetchTimetable(ctx context.Context, req dto.FetchTimetableRequest) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}

	s.sweep(ctx)

	ticket, err := s.tickets.Take(ctx, req.SessionID)
	if err != nil {
		s.metrics.RecordTicket(TicketRejected, 1)
		s.metrics.RecordTimetable(appErrors.ErrInvalidSession.Code)
		if errors.Is(err, appErrors.ErrNotFound) {
			s.logger.Warn("invalid session id", zap.String("session", redact(req.SessionID)))
			return nil, appErrors.Clone(appErrors.ErrInvalidSession, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	s.metrics.RecordTicket(TicketConsumed, 1)

	query := models.TimetableQuery{AcademicYear: req.AcademicYearCode, Semester: req.SemesterID}
	if query.AcademicYear == "" {
		query.AcademicYear = s.config.DefaultAcademicYear
	}
	if query.Semester == "" {
		query.Semester = s.config.DefaultSemester
	}

	s.logger.Info("attempting portal login", zap.String("username", req.Username))
	timetable, err := s.portal.FetchTimetable(ctx, erp.LoginRequest{
		CSRF:    ticket.CSRF,
		Cookies: ticket.Cookies,
		Credentials: models.Credentials{
			Username: req.Username,
			Password: req.Password,
			Captcha:  req.Captcha,
		},
		Query: query,
	})
	if err != nil {
		appErr := s.timetableError(err)
		s.metrics.RecordTimetable(appErr.Code)
		s.logger.Warn("timetable fetch failed", zap.String("username", req.Username), zap.String("code", appErr.Code), zap.Error(err))
		return nil, appErr
	}

	s.metrics.RecordTimetable("OK")
	s.logger.Info("fetched timetable", zap.String("username", req.Username), zap.Int("days", len(timetable.Days)))
	return timetable, nil
}

func (s *SessionService) captchaError(err error) *appErrors.Error {
	switch {
	case errors.Is(err, erp.ErrCSRFTokenMissing):
		s.logger.Error("csrf token not found in portal login page")
		return appErrors.Wrap(err, appErrors.ErrCSRFNotFound.Code, appErrors.ErrCSRFNotFound.Status, appErrors.ErrCSRFNotFound.Message)
	case errors.Is(err, erp.ErrCaptchaMissing):
		s.logger.Error("captcha image not found in portal response")
		return appErrors.Wrap(err, appErrors.ErrCaptchaNotFound.Code, appErrors.ErrCaptchaNotFound.Status, appErrors.ErrCaptchaNotFound.Message)
	case erp.IsUpstream(err):
		s.logger.Error("network error while fetching captcha", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "Network error while fetching CAPTCHA")
	default:
		s.logger.Error("unexpected error issuing captcha", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
}

func (s *SessionService) timetableError(err error) *appErrors.Error {
	switch {
	case errors.Is(err, erp.ErrLoginRejected):
		return appErrors.Wrap(err, appErrors.ErrLoginRejected.Code, appErrors.ErrLoginRejected.Status, appErrors.ErrLoginRejected.Message)
	case errors.Is(err, erp.ErrTimetableMissing):
		return appErrors.Wrap(err, appErrors.ErrTimetableNotFound.Code, appErrors.ErrTimetableNotFound.Status, appErrors.ErrTimetableNotFound.Message)
	case erp.IsUpstream(err):
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "Network error while fetching timetable")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
}

// imageContentType keeps the portal's image type and falls back to JPEG.
func imageContentType(upstream string) string {
	if strings.HasPrefix(strings.ToLower(upstream), "image/") {
		return upstream
	}
	return "image/jpeg"
}

func redact(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
