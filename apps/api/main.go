package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/edufam/edufam/apps/api/echo"
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
	emailsvc "github.com/edufam/edufam/services/email"
	logsvc "github.com/edufam/edufam/services/logger"
	metricsvc "github.com/edufam/edufam/services/metrics"
	realtimesvc "github.com/edufam/edufam/services/realtime"
	schedulersvc "github.com/edufam/edufam/services/scheduler"
	"github.com/edufam/edufam/storage/database"
	inmemdb "github.com/edufam/edufam/storage/database/inmem"
	sqlxrepos "github.com/edufam/edufam/storage/database/sqlx"
)

type repositories struct {
	db            core.DB
	close         func() error
	users         user.Repository
	schools       school.Repository
	academics     academic.Repository
	grades        grade.Repository
	timetables    timetable.Repository
	attendance    attendance.Repository
	fees          fee.Repository
	announcements announcement.Repository
	messages      message.Repository
	audit         audit.Repository
}

func main() {
	inMemory := flag.Bool("inmem", false, "keep the data in memory instead of PostgreSQL")
	flag.Parse()

	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(conf, "API")
	dbLogger := logsvc.NewRollbarLogger(conf, "DB")
	schedLogger := logsvc.NewRollbarLogger(conf, "SCHEDULER")

	// set up DB
	var repos repositories
	var err error
	if *inMemory {
		repos = inMemoryRepositories()
	} else if repos, err = postgresRepositories(conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up realtime broker
	metrics := metricsvc.New()
	hub := realtimesvc.NewHub(metrics)
	var broker realtime.Broker = hub
	if conf.Redis.Addr != "" {
		redisBroker := realtimesvc.NewRedisBroker(realtimesvc.NewRedisClient(conf), hub, logger)
		go func() {
			if err := redisBroker.Run(ctx); err != nil {
				logger.Error(fmt.Sprintf("redis broker stopped: %v", err), err)
			}
		}()
		broker = redisBroker
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	auditSvc := audit.NewService(repos.audit, dbLogger)
	usrSvc := user.NewService(repos.db, repos.users, mailSvc, conf)
	schoolSvc := school.NewService(repos.schools, auditSvc)
	academicSvc := academic.NewService(repos.db, repos.academics, repos.users, auditSvc)
	gradeSvc := grade.NewService(repos.db, repos.grades, repos.academics, auditSvc, broker, metrics, logger)
	timetableSvc := timetable.NewService(repos.db, repos.timetables, repos.academics, auditSvc, broker, metrics, logger)
	attendanceSvc := attendance.NewService(repos.db, repos.attendance, repos.academics, auditSvc)
	feeSvc := fee.NewService(repos.db, repos.fees, repos.academics, auditSvc)
	announcementSvc := announcement.NewService(repos.announcements, auditSvc, broker, metrics, logger)
	messageSvc := message.NewService(repos.messages, repos.users, broker, logger)
	reportSvc := report.NewService(repos.academics, repos.grades, repos.attendance)
	dashboardSvc := dashboard.NewService(repos.schools, repos.users, repos.academics, repos.grades, feeSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	announcement.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(conf, logger)

	// =========================================================================
	// Start Scheduler

	sched, err := schedulersvc.New(conf, announcementSvc, schedLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up scheduler: %v", err), err)
	}
	sched.Start()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			Metrics:         metrics,
			Broker:          broker,
			UserSvc:         usrSvc,
			SchoolSvc:       schoolSvc,
			AcademicSvc:     academicSvc,
			GradeSvc:        gradeSvc,
			TimetableSvc:    timetableSvc,
			AttendanceSvc:   attendanceSvc,
			FeeSvc:          feeSvc,
			AnnouncementSvc: announcementSvc,
			MessageSvc:      messageSvc,
			AuditSvc:        auditSvc,
			ReportSvc:       reportSvc,
			DashboardSvc:    dashboardSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancelShutdown()

		sched.Stop(shutdownCtx)

		// asking listener to shutdown and shed load
		if err = server.Shutdown(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func postgresRepositories(conf *core.Config) (repositories, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return repositories{}, err
	}

	return repositories{
		db:            db,
		close:         db.Close,
		users:         sqlxrepos.NewUserRepository(db),
		schools:       sqlxrepos.NewSchoolRepository(db),
		academics:     sqlxrepos.NewAcademicRepository(db),
		grades:        sqlxrepos.NewGradeRepository(db),
		timetables:    sqlxrepos.NewTimetableRepository(db),
		attendance:    sqlxrepos.NewAttendanceRepository(db),
		fees:          sqlxrepos.NewFeeRepository(db),
		announcements: sqlxrepos.NewAnnouncementRepository(db),
		messages:      sqlxrepos.NewMessageRepository(db),
		audit:         sqlxrepos.NewAuditRepository(db),
	}, nil
}

func inMemoryRepositories() repositories {
	db := inmemdb.Open()
	return repositories{
		close:         func() error { return nil },
		users:         inmemdb.NewUserRepository(db),
		schools:       inmemdb.NewSchoolRepository(db),
		academics:     inmemdb.NewAcademicRepository(db),
		grades:        inmemdb.NewGradeRepository(db),
		timetables:    inmemdb.NewTimetableRepository(db),
		attendance:    inmemdb.NewAttendanceRepository(db),
		fees:          inmemdb.NewFeeRepository(db),
		announcements: inmemdb.NewAnnouncementRepository(db),
		messages:      inmemdb.NewMessageRepository(db),
		audit:         inmemdb.NewAuditRepository(db),
	}
}
