package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date without a time-of-day component.
	// The underlying time is always midnight UTC.
	Date struct {
		time.Time
	}

	// DateRange is an inclusive interval of calendar dates.
	DateRange struct {
		Start Date
		End   Date
	}

	Category struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Icon      string    `json:"icon"`
		Color     string    `json:"color"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// CategoryRef is the subset of a Category attached to expenses on read.
	CategoryRef struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Icon  string `json:"icon"`
		Color string `json:"color"`
	}

	Expense struct {
		ID          int64       `json:"id"`
		Amount      Money       `json:"amount"`
		CategoryID  int64       `json:"categoryId"`
		Date        Date        `json:"date"`
		Description *string     `json:"description"`
		CreatedAt   time.Time   `json:"createdAt"`
		UpdatedAt   time.Time   `json:"updatedAt"`
		Category    CategoryRef `json:"category"`
	}

	// ExpenseFilter narrows List results. Nil fields do not filter.
	ExpenseFilter struct {
		Range      *DateRange
		CategoryID *int64
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
)

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD". An empty string leaves the date zero.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected a YYYY-MM-DD string", ErrInvalidDate)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthBounds returns the first and last calendar day of the given month.
// The last day accounts for month length and leap years.
func MonthBounds(year, month int) DateRange {
	first := NewDate(year, month, 1)
	// Day 0 of the following month normalises to the last day of this one.
	last := Date{Time: time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)}
	return DateRange{Start: first, End: last}
}

// YearBounds returns January 1st through December 31st of year.
func YearBounds(year int) DateRange {
	return DateRange{Start: NewDate(year, 1, 1), End: NewDate(year, 12, 31)}
}

// Contains reports whether d lies within the inclusive range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

// Ref returns the enrichment view of the category.
func (c Category) Ref() CategoryRef {
	return CategoryRef{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color}
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("category name is required")
	}
	if strings.TrimSpace(c.Icon) == "" {
		return errors.New("category icon is required")
	}
	if strings.TrimSpace(c.Color) == "" {
		return errors.New("category color is required")
	}
	return nil
}

// Matches reports whether the expense passes the filter.
func (f ExpenseFilter) Matches(e Expense) bool {
	if f.Range != nil && !f.Range.Contains(e.Date) {
		return false
	}
	if f.CategoryID != nil && e.CategoryID != *f.CategoryID {
		return false
	}
	return true
}

// DefaultCategories is the fixed set inserted into an empty store at boot.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Food", Icon: "🍴", Color: "#10b981"},
		{Name: "Transport", Icon: "🚗", Color: "#3b82f6"},
		{Name: "Shopping", Icon: "🛍️", Color: "#ec4899"},
		{Name: "Utilities", Icon: "💡", Color: "#f59e0b"},
	}
}
