package funcs

import (
	"time"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

func init() {
	// Component accessors and the clock functions are all ShapePure: they
	// read only $this (or, for now/today/timeOfDay, the wall clock).
	Register(FuncDef{Name: "year", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnYear})
	Register(FuncDef{Name: "month", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnMonth})
	Register(FuncDef{Name: "day", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnDay})
	Register(FuncDef{Name: "hour", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnHour})
	Register(FuncDef{Name: "minute", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnMinute})
	Register(FuncDef{Name: "second", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnSecond})
	Register(FuncDef{Name: "millisecond", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnMillisecond})
	Register(FuncDef{Name: "now", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnNowReal})
	Register(FuncDef{Name: "today", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnTodayReal})
	Register(FuncDef{Name: "timeOfDay", MinArgs: 0, MaxArgs: 0, Shape: eval.ShapePure, Fn: fnTimeOfDayReal})
}

// dateLike is implemented by types.Date and types.DateTime.
type dateLike interface {
	Year() int
	Month() int
	Day() int
}

// clockLike is implemented by types.DateTime and types.Time.
type clockLike interface {
	Hour() int
	Minute() int
	Second() int
	Millisecond() int
}

// dateComponent extracts a date-side component (year/month/day) from a Date
// or DateTime receiver, treating a zero month/day (partial precision) as
// absent rather than as literal zero.
func dateComponent(input types.Collection, get func(dateLike) int) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	dl, ok := input[0].(dateLike)
	if !ok {
		return types.Collection{}, nil
	}
	v := get(dl)
	if v == 0 {
		return types.Collection{}, nil
	}
	return types.Collection{types.NewInteger(int64(v))}, nil
}

// clockComponent extracts a time-of-day component from a DateTime or Time
// receiver. Unlike dateComponent, 0 (midnight, :00) is a real value here.
func clockComponent(input types.Collection, get func(clockLike) int) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	cl, ok := input[0].(clockLike)
	if !ok {
		return types.Collection{}, nil
	}
	return types.Collection{types.NewInteger(int64(get(cl)))}, nil
}

// fnYear returns the year component. Year never reports absent: a Date or
// DateTime always carries at least a year.
func fnYear(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	dl, ok := input[0].(dateLike)
	if !ok {
		return types.Collection{}, nil
	}
	return types.Collection{types.NewInteger(int64(dl.Year()))}, nil
}

// fnMonth returns the month component.
func fnMonth(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	return dateComponent(input, dateLike.Month)
}

// fnDay returns the day component.
func fnDay(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	return dateComponent(input, dateLike.Day)
}

// fnHour returns the hour component.
func fnHour(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	return clockComponent(input, clockLike.Hour)
}

// fnMinute returns the minute component.
func fnMinute(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	return clockComponent(input, clockLike.Minute)
}

// fnSecond returns the second component.
func fnSecond(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	return clockComponent(input, clockLike.Second)
}

// fnMillisecond returns the millisecond component.
func fnMillisecond(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	return clockComponent(input, clockLike.Millisecond)
}

// fnNowReal returns the current datetime.
func fnNowReal(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	return types.Collection{types.NewDateTimeFromTime(time.Now())}, nil
}

// fnTodayReal returns the current date.
func fnTodayReal(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	return types.Collection{types.NewDateFromTime(time.Now())}, nil
}

// fnTimeOfDayReal returns the current time.
func fnTimeOfDayReal(_ *eval.Context, input types.Collection, _ []interface{}) (types.Collection, error) {
	return types.Collection{types.NewTimeFromGoTime(time.Now())}, nil
}
