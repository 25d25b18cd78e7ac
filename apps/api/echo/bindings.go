package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
)

var (
	orderingParam = "ordering"
	dateParam     = "date"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindDate reads an optional `date` query param; fallback is used when absent.
func bindDate(ctx echo.Context, fallback time.Time) (time.Time, error) {
	val := ctx.QueryParam(dateParam)
	if val == "" {
		return fallback, nil
	}
	date, err := time.ParseInLocation(dateLayout, val, core.Conf.Location())
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: dateParam, Error: "invalid date; expected YYYY-MM-DD"})
	}
	return date, nil
}
