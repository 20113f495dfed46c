package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/school"
	"github.com/edufam/edufam/core/user"
	logsvc "github.com/edufam/edufam/services/logger"
	"github.com/edufam/edufam/storage/database"
	sqlxrepos "github.com/edufam/edufam/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(conf, "ADMIN")

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	auditSvc := audit.NewService(sqlxrepos.NewAuditRepository(db), logger)

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		schoolRepo: schoolRepo,
		schools:    school.NewService(schoolRepo, auditSvc),
		validate:   validate,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
