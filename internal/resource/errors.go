/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package resource

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

var (
	// ErrConflict means an object with the same name already exists.
	ErrConflict = errors.New("already exists")
	// ErrNotFound means the addressed object does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBackend covers every other API failure.
	ErrBackend = errors.New("backend error")
)

// Op names the operation that failed.
type Op string

const (
	OpGet    Op = "get"
	OpList   Op = "list"
	OpCreate Op = "create"
	OpDelete Op = "delete"
)

// OpError describes a failed adapter or namespace operation.
type OpError struct {
	Op        Op
	Kind      Kind
	Namespace string
	Name      string
	// Class is one of ErrConflict, ErrNotFound or ErrBackend.
	Class error
	Err   error
}

func (e *OpError) Error() string {
	target := e.Namespace
	switch {
	case e.Name != "" && e.Namespace != "":
		target = e.Namespace + "/" + e.Name
	case e.Name != "":
		target = e.Name
	}
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Kind, target, e.Err)
}

// Unwrap exposes both the class sentinel and the underlying API error.
func (e *OpError) Unwrap() []error {
	return []error{e.Class, e.Err}
}

// Classify wraps err into an *OpError. Create maps AlreadyExists to
// ErrConflict, delete maps NotFound to ErrNotFound; everything else is
// ErrBackend. A nil err yields nil.
func Classify(op Op, kind Kind, namespace, name string, err error) error {
	if err == nil {
		return nil
	}

	class := ErrBackend
	switch {
	case op == OpCreate && apierrors.IsAlreadyExists(err):
		class = ErrConflict
	case op == OpDelete && apierrors.IsNotFound(err):
		class = ErrNotFound
	}

	return &OpError{
		Op:        op,
		Kind:      kind,
		Namespace: namespace,
		Name:      name,
		Class:     class,
		Err:       err,
	}
}

// IsConflict reports whether err is classified as ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound reports whether err is classified as ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBackend reports whether err is classified as ErrBackend.
func IsBackend(err error) bool {
	return errors.Is(err, ErrBackend)
}
