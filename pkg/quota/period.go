package quota

import "time"

const dayLayout = "2006-01-02"

// Day truncates t to midnight of its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextReset returns the next UTC midnight after t.
func NextReset(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}

// PeriodKey returns the record key for svc on the UTC day containing t.
func PeriodKey(t time.Time, svc Service) string {
	return t.UTC().Format(dayLayout) + "#" + string(svc)
}
