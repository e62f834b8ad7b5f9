package entity

import "time"

// Shop is the shop record exposed by the metadata store.
type Shop struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Currency  string `db:"currency"`
	Timezone  string `db:"timezone"`
	IgnoreVAT bool   `db:"ignore_vat"`
}

// Location returns the shop's timezone, UTC when unset or unknown.
func (s Shop) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
