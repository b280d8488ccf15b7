package services

import "gorm.io/gorm"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of a list query. Page numbers start at 1.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page into the accepted range
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Apply adds LIMIT/OFFSET to q
func (p Page) Apply(q *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return q.Limit(p.Size).Offset((p.Number - 1) * p.Size)
}
