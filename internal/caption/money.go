package caption

import "github.com/dustin/go-humanize"

// FormatMoney renders v as dollars with two decimals and thousands
// separators: 12345.678 -> "$12,345.68", -5 -> "$-5.00".
func FormatMoney(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}
