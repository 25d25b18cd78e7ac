package main

import (
	"fmt"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
)

// stationToken mints a signed API token for a scan station or admin console.
// Tokens are provisioned out of band; the API only verifies them.
func (cli *commandLine) stationToken(stationTag string) error {
	token, err := echoapi.GenerateToken(echoapi.NewStationClaims(stationTag))
	if err != nil {
		return err
	}
	if stationTag == "" {
		fmt.Println("admin console token:")
	} else {
		fmt.Printf("token for station %q:\n", stationTag)
	}
	fmt.Println(token)
	return nil
}
