package models

// User owns accounts, categories, rules, ledger entries and import records.
// Authentication lives upstream; the backend only needs the resolved identity.
type User struct {
	DefaultModel
	Name string
}
