package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/user"
)

// addUser updates or creates a school owner, or an EduFam admin when platformAdmin is set.
func (cli *commandLine) addUser(uname, email, pwd, schoolCode string, platformAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{Name: uname, Username: uname}
	}
	usr.Email = email

	if platformAdmin {
		usr.SchoolID = ""
		usr.Roles = []string{user.RolePlatformAdmin}
	} else {
		sch, err := cli.schoolRepo.GetSchoolByCode(ctx, core.CleanString(schoolCode, true /* lower */))
		if err != nil {
			return err
		}
		usr.SchoolID = sch.ID
		usr.Roles = []string{user.RoleSchoolOwner}
	}
	usr.IsActive = true
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		if err = cli.usrRepo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email, []user.User{usr}); err != nil {
			return err
		}
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
		return err
	}
	now := time.Now().UTC()
	usr.CreatedAt, usr.UpdatedAt = now, now
	_, err = cli.usrRepo.CreateUser(ctx, usr)
	return err
}
