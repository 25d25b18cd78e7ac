package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database"
	sqliterepos "github.com/trezcool/mahudhurio/storage/database/sqlite"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	db, stdRepo, attRepo, err := setUpDB()
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logsvc.NewStdLogger(logger))
	}
	stdSvc := student.NewService(stdRepo)
	attSvc := attendance.NewService(attRepo, stdSvc, mailSvc)

	// start CLI
	cli := commandLine{
		db:     db,
		stdSvc: stdSvc,
		attSvc: attSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func setUpDB() (*sql.DB, student.Repository, attendance.Repository, error) {
	if core.Conf.Database.Engine == "sqlite3" {
		db, err := sqliterepos.Open(core.Conf.Database.Name)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, sqliterepos.NewStudentRepository(db), sqliterepos.NewAttendanceRepository(db), nil
	}

	db, err := database.Open(core.Conf)
	if err != nil {
		return nil, nil, nil, err
	}
	return db, sqlxrepos.NewStudentRepository(db), sqlxrepos.NewAttendanceRepository(db), nil
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
