package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/school"
	"github.com/edufam/edufam/core/user"
	inmemdb "github.com/edufam/edufam/storage/database/inmem"
	testutil "github.com/edufam/edufam/tests"
)

var (
	usrRepo    user.Repository
	schoolRepo school.Repository
)

func setup(t *testing.T) *commandLine {
	t.Helper()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	schoolRepo = inmemdb.NewSchoolRepository(db)

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	// start CLI
	return &commandLine{
		usrRepo:    usrRepo,
		schoolRepo: schoolRepo,
		schools:    school.NewService(schoolRepo, audit.NewService(inmemdb.NewAuditRepository(db), core.NopLogger{})),
		validate:   validate,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	runMigrationFunc = func(_ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "fees", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			case err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}

func Test_commandLine_addSchool(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"addschool"}, wantErr: errHelp},
		{name: "code missing", args: []string{"addschool", "-name", "Hilltop"}, wantErr: errHelp},
		{name: "ok", args: []string{"addschool", "-name", "Hilltop Academy", "-code", "HILL", "-email", "info@hill.ac"}},
		{name: "code exists", args: []string{"addschool", "-name", "Other", "-code", "hill"}, wantErr: school.ErrCodeExists},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	sch, err := schoolRepo.GetSchoolByCode(context.Background(), "hill")
	if err != nil {
		t.Fatalf("GetSchoolByCode() failed: %v", err)
	}
	if sch.Name != "Hilltop Academy" || sch.Email != "info@hill.ac" || !sch.IsActive {
		t.Errorf("addschool created %+v", sch)
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	sch := testutil.CreateSchool(t, schoolRepo, "Hilltop", "hill")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no school nor platform", args: []string{"adduser", "-username", "owner", "-email", "owner@hill.ac"}, wantErr: errHelp},
		{
			name: "school and platform", args: []string{"adduser", "-username", "owner", "-email", "owner@hill.ac", "-school", "hill", "-platform-admin"},
			wantErr: errHelp,
		},
		{name: "no password", args: []string{"adduser", "-username", "owner", "-email", "owner@hill.ac", "-school", "hill"}, wantErr: errHelp},
		{
			name: "unknown school", args: []string{"adduser", "-username", "owner", "-email", "owner@hill.ac", "-school", "lol"},
			extra: extra{pwd: "s3cret!pwd"}, wantErr: school.ErrNotFound,
		},
		{
			name: "school owner", args: []string{"adduser", "-username", "Owner", "-email", "OWNER@hill.ac", "-school", "HILL"},
			extra: extra{pwd: "s3cret!pwd"},
		},
		{
			name: "platform admin", args: []string{"adduser", "-username", "root", "-email", "root@edufam.io", "-platform-admin"},
			extra: extra{pwd: "s3cret!pwd"},
		},
		{
			name: "update existing", args: []string{"adduser", "-username", "owner", "-email", "owner@hill.ac", "-platform-admin"},
			extra: extra{pwd: "n3w!pwd"},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		pwd := ""
		if ex, ok := tt.extra.(extra); ok {
			pwd = ex.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})

		switch tt.name {
		case "school owner":
			owner, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "owner"})
			if err != nil {
				t.Fatalf("GetUser() failed: %v", err)
			}
			if owner.SchoolID != sch.ID || !owner.HasRole(user.RoleSchoolOwner) || !owner.IsActive || owner.Email != "owner@hill.ac" {
				t.Errorf("adduser created %+v", owner)
			}
		case "update existing":
			owner, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "owner"})
			if err != nil {
				t.Fatalf("GetUser() failed: %v", err)
			}
			if owner.SchoolID != "" || !owner.IsPlatformAdmin() || owner.CheckPassword("n3w!pwd") != nil {
				t.Errorf("adduser updated %+v", owner)
			}
		}
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "", "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		pwd := ""
		if ex, ok := tt.extra.(extra); ok {
			pwd = ex.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
