package user

import (
	"github.com/edufam/edufam/core"
)

// NewServiceMock returns a Service that sends password reset mails synchronously.
func NewServiceMock(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		db:       db,
		repo:     repo,
		mailSvc:  mailSvc,
		tokenGen: newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		dispatch: func(fn func()) { fn() },
	}
}

// MakeResetToken exposes the password reset token of usr to other packages' tests.
func MakeResetToken(conf *core.Config, usr User) (string, error) {
	return newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta).MakeToken(usr)
}
