package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sql.DB
	stdSvc student.Service
	attSvc attendance.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate up|down|status [ARGS] - run database migrations")
	fmt.Println("  addstudent -nis NIS -name NAME [-nisn NISN] [-class CLASS] - register a student")
	fmt.Println("  stationtoken [-station TAG] - mint an API token; omit -station for an admin console token")
	fmt.Println("  summary [-date YYYY-MM-DD] - email the daily attendance summary")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addStudentCmd := flag.NewFlagSet("addstudent", flag.ExitOnError)
	addStudentNIS := addStudentCmd.String("nis", "", "The student's school-issued NIS number.")
	addStudentNISN := addStudentCmd.String("nisn", "", "The student's national NISN number (10 digits).")
	addStudentName := addStudentCmd.String("name", "", "The student's full name.")
	addStudentClass := addStudentCmd.String("class", "", "The student's class label.")

	stationTokenCmd := flag.NewFlagSet("stationtoken", flag.ExitOnError)
	stationTokenTag := stationTokenCmd.String("station", "", "The scan station tag.")

	summaryCmd := flag.NewFlagSet("summary", flag.ExitOnError)
	summaryDate := summaryCmd.String("date", "", "The day to summarize (YYYY-MM-DD). Defaults to today.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStudentNIS == "" || *addStudentName == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		return cli.addStudent(*addStudentNIS, *addStudentNISN, *addStudentName, *addStudentClass)
	case "stationtoken":
		if err := stationTokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.stationToken(*stationTokenTag)
	case "summary":
		if err := summaryCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.sendSummary(*summaryDate)
	default:
		cli.printUsage()
		return errHelp
	}
}
