package domain

import "time"

type Group struct {
	ID        int64
	Name      string
	ShortName string // used when formatting nicknames
	Disabled  bool   // soft delete; disabled groups stay referencable
	CreatedAt time.Time
	UpdatedAt time.Time
}
