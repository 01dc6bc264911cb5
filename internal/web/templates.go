package web

import (
	"fmt"
	"html/template"
	"time"

	"mybrain/internal/calendar"
)

var templateFuncs = template.FuncMap{
	"clock":        func(t time.Time) string { return t.Format("3:04 PM") },
	"px":           func(v float64) string { return fmt.Sprintf("%.0fpx", v) },
	"columnHeight": func() string { return fmt.Sprintf("%dpx", calendar.ColumnHeight) },
	"isMonth":      func(v calendar.View) bool { return v == calendar.ViewMonth },
}
