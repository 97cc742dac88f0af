package singleflight

import "fmt"

// PanicError is returned to every waiter of a call whose function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("singleflight: call panicked: %v", p.Value)
}
