package client

import (
	"context"
	"errors"
	"sync/atomic"
)

// LoginPath is where a failed refresh navigates.
const LoginPath = "/login"

// Destination records where the user was before being sent to log in.
type Destination struct {
	Path string
}

// Navigator moves the user to another route.
type Navigator interface {
	Navigate(ctx context.Context, to string, from Destination)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, to string, from Destination)

func (f NavigatorFunc) Navigate(ctx context.Context, to string, from Destination) { f(ctx, to, from) }

// ErrNavigatorSet is returned by SetNavigationHandler after the first call.
var ErrNavigatorSet = errors.New("client: navigation handler already set")

type navigatorBox struct{ n Navigator }

var globalNavigator atomic.Pointer[navigatorBox]

// SetNavigationHandler registers the process-wide Navigator. It may be called
// once.
func SetNavigationHandler(n Navigator) error {
	if n == nil {
		return errors.New("client: nil navigation handler")
	}
	if !globalNavigator.CompareAndSwap(nil, &navigatorBox{n: n}) {
		return ErrNavigatorSet
	}
	return nil
}

// NavigationHandler returns the registered Navigator, or nil.
func NavigationHandler() Navigator {
	if b := globalNavigator.Load(); b != nil {
		return b.n
	}
	return nil
}
