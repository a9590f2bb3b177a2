// Copyright 2026 Mandatevault Ltd.

// Package dbmodel contains the model objects for the relational storage
// database.
package dbmodel

const (
	// Component is the component name in the version table for the
	// mandate-vault data model.
	Component = "mvaultdb"

	// Major is the major version of the model described in the dbmodel
	// package. It should be incremented if the database model is modified
	// in a way that is not backwards-compatible. If this is incremented
	// the Minor version should be reset to 0.
	Major = 1

	// Minor is the minor version of the model described in the dbmodel
	// package. It should be incremented for any change made to the
	// database model from a released mandate-vault.
	Minor = 1
)

type Version struct {
	// Component represents the component that the stored version number
	// is for. Currently there is only one known component "mvaultdb", it
	// mostly exists for the purposes of there being a primary key on the
	// database table.
	Component string `gorm:"primaryKey"`

	// Major is the stored major version.
	Major int

	// Minor is the stored minor version.
	Minor int
}
