package models

// ConcurrencyToken pairs an entity id with the row version the caller read.
// It lives for one conditional update and is never persisted.
type ConcurrencyToken struct {
	ID         int64
	RowVersion []byte
}
