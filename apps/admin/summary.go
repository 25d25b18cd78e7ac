package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

// sendSummary emails the attendance numbers for one day; meant to run from cron.
func (cli *commandLine) sendSummary(rawDate string) error {
	date := cli.attSvc.Today()
	if rawDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", rawDate, core.Conf.Location())
		if err != nil {
			return fmt.Errorf("invalid date %q; expected YYYY-MM-DD", rawDate)
		}
		date = attendance.DateOf(parsed)
	}

	if err := cli.attSvc.SendDailySummary(context.Background(), date); err != nil {
		return err
	}
	time.Sleep(2 * time.Second) // let the async mailer flush
	fmt.Printf("summary for %s sent\n", date.Format("2006-01-02"))
	return nil
}
