package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/announcement"
	"github.com/edufam/edufam/core/attendance"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/dashboard"
	"github.com/edufam/edufam/core/fee"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/message"
	"github.com/edufam/edufam/core/realtime"
	"github.com/edufam/edufam/core/report"
	"github.com/edufam/edufam/core/school"
	"github.com/edufam/edufam/core/timetable"
	"github.com/edufam/edufam/core/user"
)

type (
	// Metrics instruments the HTTP layer.
	Metrics interface {
		Handler() http.Handler
		RequestStarted()
		RequestDone(method, path string, status int, seconds float64)
		RateLimited(limiter string)
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Metrics        Metrics
		Broker         realtime.Broker
		DisableReqLogs bool

		UserSvc         user.Service
		SchoolSvc       school.Service
		AcademicSvc     academic.Service
		GradeSvc        grade.Service
		TimetableSvc    timetable.Service
		AttendanceSvc   attendance.Service
		FeeSvc          fee.Service
		AnnouncementSvc announcement.Service
		MessageSvc      message.Service
		AuditSvc        audit.Service
		ReportSvc       report.Service
		DashboardSvc    dashboard.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal

		apiLimiter  *rateLimiter
		authLimiter *rateLimiter
		purgeCtx    context.Context
		stopPurge   context.CancelFunc
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.purgeCtx, s.stopPurge = context.WithCancel(context.Background())
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !(s.deps.DisableReqLogs || conf.TestMode) {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(metricsMiddleware(s.deps.Metrics))
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.apiLimiter = newRateLimiter(limiterAPI, conf.RateLimit.RPS, conf.RateLimit.Burst, s.deps.Metrics)
	s.authLimiter = newRateLimiter(limiterAuth, conf.RateLimit.AuthRPS, conf.RateLimit.AuthBurst, s.deps.Metrics)

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf, "header:Authorization"))
	auth := &authenticator{conf: conf, users: s.deps.UserSvc, schools: s.deps.SchoolSvc}

	// public endpoints
	registerAuthAPI(v1, auth, s.deps.UserSvc, s.deps.Validate, s.deps.Logger, s.authLimiter.middleware())
	registerRealtimeAPI(v1, conf, auth, s.deps.Broker, s.deps.Logger)

	// authed endpoints
	ag := v1.Group("", jwt, s.apiLimiter.middleware())
	sg := ag.Group("", tenantMiddleware(true))  // school-scoped
	og := ag.Group("", tenantMiddleware(false)) // school optional (platform admins)

	registerUserAPI(og, auth, s.deps.UserSvc, s.deps.Validate)
	registerSchoolAPI(og, s.deps.SchoolSvc, s.deps.Validate)
	registerAcademicAPI(sg, s.deps.AcademicSvc, s.deps.Validate)
	registerGradeAPI(sg, s.deps.GradeSvc, s.deps.AcademicSvc, s.deps.UserSvc, s.deps.Validate)
	registerTimetableAPI(sg, s.deps.TimetableSvc, s.deps.Validate)
	registerAttendanceAPI(sg, s.deps.AttendanceSvc, s.deps.AcademicSvc, s.deps.UserSvc, s.deps.Validate)
	registerFeeAPI(sg, s.deps.FeeSvc, s.deps.AcademicSvc, s.deps.UserSvc, s.deps.Validate)
	registerAnnouncementAPI(sg, s.deps.AnnouncementSvc, s.deps.Validate)
	registerMessageAPI(og, s.deps.MessageSvc, s.deps.UserSvc, s.deps.Validate)
	registerAuditAPI(sg, s.deps.AuditSvc)
	registerReportAPI(sg, s.deps.ReportSvc, s.deps.AcademicSvc, s.deps.UserSvc)
	registerPortalAPI(og, s.deps.DashboardSvc, s.deps.UserSvc)
}

// Start listens on the configured address; the listener error, if any, is sent on Errors.
func (s *Server) Start() {
	go s.apiLimiter.run(s.purgeCtx)
	go s.authLimiter.run(s.purgeCtx)

	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.stop()
	return s.app.Close()
}

func (s *Server) stop() {
	signal.Stop(s.shutdown)
	s.stopPurge()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to EduFam API!")
}
