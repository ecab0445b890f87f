// Package errclass classifies errors by severity so that callers can decide
// whether an operation is worth retrying.
package errclass

import (
	"github.com/datapipe-labs/dp-go-common/xerrors"
)

// Class represents a kind of error.
type Class int

// The numeric values impose a strict ordering from least to most severe.
// When classifying a joined error, the most severe class wins.
const (
	Nil     Class = -1
	Unknown Class = 0

	Transient  Class = 100
	Persistent Class = 110

	Panic Class = 900
)

// String implements the stringer interface.
func (c Class) String() string {
	switch c {
	case Nil:
		return "nil"
	case Transient:
		return "transient"
	case Persistent:
		return "persistent"
	case Panic:
		return "panic"
	default:
		return "unknown"
	}
}

// Mark attaches the given class to an error.
func Mark(err error, class Class) error {
	if err == nil {
		return nil
	}
	return xerrors.Attach(class, err)
}

// GetClass determines the class of an error.
// For joined errors, the most severe class among the children is returned.
func GetClass(err error) Class {
	if err == nil {
		return Nil
	}

	result := Nil
	for _, child := range xerrors.Split(err) {
		class, ok := xerrors.Lookup[Class](child)
		switch {
		case ok && class > result:
			result = class
		case !ok && result < Unknown:
			result = Unknown
		}
	}
	return result
}
