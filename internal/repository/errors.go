// Package repository contains the MySQL data access layer. Repositories
// return the sentinel errors below so services can classify failures
// without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller may not touch a row, for
	// example repositioning a board they are not a member of.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateEmail is returned when a user insert or update collides
	// with the unique email index.
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrAlreadyMember is returned when a membership row already exists.
	ErrAlreadyMember = errors.New("already a member")

	// ErrVersionConflict is returned when a caller's expected version of a
	// board or list no longer matches the stored one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidOrder is returned when a submitted card order is not a
	// permutation of the stored cards.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrConflict is returned when a write cannot proceed because of the
	// state of related rows, such as moving a card to a list on another
	// board.
	ErrConflict = errors.New("conflict")
)

const errDupEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}
