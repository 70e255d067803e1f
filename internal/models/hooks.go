package models

import (
	"gorm.io/gorm"
)

// BeforeSave keeps the account's email canonical and its credential invariant intact.
func (a *Account) BeforeSave(tx *gorm.DB) error {
	return a.Normalize()
}

// BeforeSave recomputes temperature, data quality and score bounds.
func (l *Lead) BeforeSave(tx *gorm.DB) error {
	l.Refresh()
	return nil
}

// BeforeSave recomputes the derived campaign metrics.
func (c *Campaign) BeforeSave(tx *gorm.DB) error {
	c.Refresh()
	return nil
}
