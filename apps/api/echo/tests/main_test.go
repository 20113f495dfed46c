package tests

import (
	"os"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/edufam/edufam/apps/api/echo"
	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/announcement"
	"github.com/edufam/edufam/core/attendance"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/dashboard"
	"github.com/edufam/edufam/core/fee"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/message"
	"github.com/edufam/edufam/core/report"
	"github.com/edufam/edufam/core/school"
	"github.com/edufam/edufam/core/timetable"
	"github.com/edufam/edufam/core/user"
	"github.com/edufam/edufam/services/email"
	"github.com/edufam/edufam/services/realtime"
	"github.com/edufam/edufam/storage/database/inmem"
	"github.com/edufam/edufam/tests"
)

const pwd = "LolC@t123"

var (
	baseConf   *core.Config
	validate   *validator.Validate
	translator ut.Translator

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func TestMain(m *testing.M) {
	baseConf = core.NewConfig()
	baseConf.TestMode = true
	baseConf.Debug = false
	baseConf.RateLimit = core.RateLimitConfig{}

	validate = validator.New()
	translator = core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	announcement.InitValidators(validate, translator)

	core.ParseEmailTemplates(baseConf, core.NopLogger{})
	user.LoadCommonPasswords(baseConf, core.NopLogger{})

	os.Exit(m.Run())
}

// env is a server backed by a fresh in-memory database.
type env struct {
	conf *core.Config
	app  *Server
	mail *emailsvc.ConsoleService
	hub  *realtimesvc.Hub

	usrRepo      user.Repository
	schoolRepo   school.Repository
	academicRepo academic.Repository
	gradeRepo    grade.Repository
	feeRepo      fee.Repository
	auditRepo    audit.Repository
}

func setup(t *testing.T, opts ...func(*core.Config)) *env {
	conf := *baseConf
	for _, opt := range opts {
		opt(&conf)
	}

	db := inmemdb.Open()
	e := &env{
		conf:         &conf,
		mail:         emailsvc.NewConsoleServiceMock(&conf, core.NopLogger{}),
		hub:          realtimesvc.NewHub(nil),
		usrRepo:      inmemdb.NewUserRepository(db),
		schoolRepo:   inmemdb.NewSchoolRepository(db),
		academicRepo: inmemdb.NewAcademicRepository(db),
		gradeRepo:    inmemdb.NewGradeRepository(db),
		feeRepo:      inmemdb.NewFeeRepository(db),
		auditRepo:    inmemdb.NewAuditRepository(db),
	}
	attRepo := inmemdb.NewAttendanceRepository(db)
	logger := core.NopLogger{}

	auditSvc := audit.NewService(e.auditRepo, logger)
	usrSvc := user.NewServiceMock(nil, e.usrRepo, e.mail, &conf)
	schoolSvc := school.NewService(e.schoolRepo, auditSvc)
	academicSvc := academic.NewService(nil, e.academicRepo, e.usrRepo, auditSvc)
	gradeSvc := grade.NewService(nil, e.gradeRepo, e.academicRepo, auditSvc, e.hub, nil, logger)
	timetableSvc := timetable.NewService(nil, inmemdb.NewTimetableRepository(db), e.academicRepo, auditSvc, e.hub, nil, logger)
	attendanceSvc := attendance.NewService(nil, attRepo, e.academicRepo, auditSvc)
	feeSvc := fee.NewService(nil, e.feeRepo, e.academicRepo, auditSvc)
	announcementSvc := announcement.NewService(inmemdb.NewAnnouncementRepository(db), auditSvc, e.hub, nil, logger)
	messageSvc := message.NewService(inmemdb.NewMessageRepository(db), e.usrRepo, e.hub, logger)

	e.app = NewServer(ServerDeps{
		Conf:            &conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		Broker:          e.hub,
		DisableReqLogs:  true,
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
		ReportSvc:       report.NewService(e.academicRepo, e.gradeRepo, attRepo),
		DashboardSvc:    dashboard.NewService(e.schoolRepo, e.usrRepo, e.academicRepo, e.gradeRepo, feeSvc),
	})
	t.Cleanup(func() { _ = e.app.Close() })
	return e
}

// world is a school with a member of every role, a class of two students & two subjects,
// plus a second school and a platform admin.
type world struct {
	school, other                        school.School
	platform, owner, principal           user.User
	teacher, teacher2, finance           user.User
	parent, otherParent, otherAdmin      user.User
	class                                academic.Class
	math, english                        academic.Subject
	child, classmate                     academic.Student
}

func (e *env) seed(t *testing.T) world {
	t.Helper()
	var w world
	w.school = testutil.CreateSchool(t, e.schoolRepo, "Institut Mwinda", "mwinda")
	w.other = testutil.CreateSchool(t, e.schoolRepo, "Lycée Tuendelee", "tuendelee")

	w.platform = testutil.CreateUser(t, e.usrRepo, "", "Platform Admin", "platform", "platform@edufam.cd", pwd, []string{user.RolePlatformAdmin}, true)
	w.owner = testutil.CreateUser(t, e.usrRepo, w.school.ID, "School Owner", "owner", "owner@mwinda.cd", pwd, []string{user.RoleSchoolOwner}, true)
	w.principal = testutil.CreateUser(t, e.usrRepo, w.school.ID, "Principal", "principal", "principal@mwinda.cd", pwd, []string{user.RolePrincipal}, true)
	w.teacher = testutil.CreateUser(t, e.usrRepo, w.school.ID, "Math Teacher", "teacher", "teacher@mwinda.cd", pwd, []string{user.RoleTeacher}, true)
	w.teacher2 = testutil.CreateUser(t, e.usrRepo, w.school.ID, "English Teacher", "teacher2", "teacher2@mwinda.cd", pwd, []string{user.RoleTeacher}, true)
	w.finance = testutil.CreateUser(t, e.usrRepo, w.school.ID, "Bursar", "bursar", "bursar@mwinda.cd", pwd, []string{user.RoleFinanceOfficer}, true)
	w.parent = testutil.CreateUser(t, e.usrRepo, w.school.ID, "Parent", "parent", "parent@mwinda.cd", pwd, []string{user.RoleParent}, true)
	w.otherParent = testutil.CreateUser(t, e.usrRepo, w.school.ID, "Other Parent", "parent2", "parent2@mwinda.cd", pwd, []string{user.RoleParent}, true)
	w.otherAdmin = testutil.CreateUser(t, e.usrRepo, w.other.ID, "Other Owner", "owner2", "owner@tuendelee.cd", pwd, []string{user.RoleSchoolOwner}, true)

	w.class = testutil.CreateClass(t, e.academicRepo, w.school.ID, "Form 1", "2026", "")
	w.math = testutil.CreateSubject(t, e.academicRepo, w.school.ID, w.class.ID, "Mathematics", "math", w.teacher.ID)
	w.english = testutil.CreateSubject(t, e.academicRepo, w.school.ID, w.class.ID, "English", "eng", w.teacher2.ID)
	w.child = testutil.CreateStudent(t, e.academicRepo, w.school.ID, w.class.ID, w.parent.ID, "ADM001", "Amani Child")
	w.classmate = testutil.CreateStudent(t, e.academicRepo, w.school.ID, w.class.ID, w.otherParent.ID, "ADM002", "Baraka Classmate")
	return w
}

func (e *env) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := NewToken(e.conf, usr)
	if err != nil {
		t.Fatalf("NewToken() failed: %v", err)
	}
	return token
}
