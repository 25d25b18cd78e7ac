package main

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core/student"
)

// addStudent registers a new roster entry.
func (cli *commandLine) addStudent(nis, nisn, name, class string) error {
	std, err := cli.stdSvc.Create(context.Background(), student.NewStudent{
		NIS:        nis,
		NISN:       nisn,
		Name:       name,
		ClassLabel: class,
	})
	if err != nil {
		return err
	}
	fmt.Printf("student %q registered (id: %s)\n", std.Name, std.ID)
	return nil
}
