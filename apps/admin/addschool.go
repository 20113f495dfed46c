package main

import (
	"context"
	"fmt"

	"github.com/edufam/edufam/core/school"
)

func (cli *commandLine) addSchool(name, code, email string) error {
	ns := school.NewSchool{Name: name, Code: code, Email: email}
	if err := ns.Validate(cli.validate); err != nil {
		return err
	}
	sch, err := cli.schools.Create(context.Background(), ns)
	if err != nil {
		return err
	}
	fmt.Printf("school %q created: %s\n", sch.Code, sch.ID)
	return nil
}
