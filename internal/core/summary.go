package core

import "time"

// MonthSummary is the spending total of a single calendar month.
type MonthSummary struct {
	Total Money  `json:"total"`
	Month string `json:"month"` // full English month name
	Year  int    `json:"year"`
}

// MonthTotal is one row of a yearly month-by-month report.
type MonthTotal struct {
	Month       string `json:"month"` // three-letter abbreviation
	MonthNumber int    `json:"monthNumber"`
	Total       Money  `json:"total"`
}

// CategoryTotal is the spending of one category over a period.
type CategoryTotal struct {
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	Total        Money  `json:"total"`
}

// ShortMonthName returns "Jan".."Dec" for 1..12.
func ShortMonthName(month int) string {
	return time.Month(month).String()[:3]
}

// FillYear expands sparse per-month sums into twelve ordered rows,
// emitting a zero total for months without expenses.
func FillYear(sums map[int]Money) []MonthTotal {
	out := make([]MonthTotal, 0, 12)
	for m := 1; m <= 12; m++ {
		out = append(out, MonthTotal{
			Month:       ShortMonthName(m),
			MonthNumber: m,
			Total:       sums[m],
		})
	}
	return out
}
