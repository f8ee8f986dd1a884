// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resource provides utilities for tracking resource lifetimes.
//
// Connections, result queues and wakeup hubs embed a [*Token] and call [Track] on creation
// and [Untrack] when they are released (a queue is released only after its deferred free).
// Live objects are visible as "sqlasync/<type>" pprof profiles;
// an object that becomes unreachable while still tracked is reported as a leak.
package resource

import (
	"fmt"
	"reflect"
	"runtime"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/FerretDB/sqlasync/internal/util/debugbuild"
)

// Token is a field of a tracked object, holding the cleanup handle and the leak message.
type Token struct {
	h   atomic.Pointer[runtime.Cleanup]
	msg string
}

// NewToken returns a new Token.
func NewToken() *Token {
	return new(Token)
}

// leaked is called by the runtime for an unreachable, still tracked object.
func leaked(t *Token) {
	if debugbuild.Enabled {
		panic(t.msg)
	}

	zap.L().Warn(t.msg)
}

// profilesM protects profile creation.
var profilesM sync.Mutex

// profileName return pprof profile name for the given object.
func profileName(obj any) string {
	return "sqlasync/" + reflect.TypeOf(obj).Elem().String()
}

// profile returns the pprof profile for the given object, creating it if needed.
func profile(obj any) *pprof.Profile {
	name := profileName(obj)

	if p := pprof.Lookup(name); p != nil {
		return p
	}

	profilesM.Lock()
	defer profilesM.Unlock()

	// a concurrent call might have created a profile already; check again
	if p := pprof.Lookup(name); p != nil {
		return p
	}

	return pprof.NewProfile(name)
}

// Track tracks the lifetime of an object until Untrack is called on it.
// Obj should be a pointer to a struct with a field "token" of type *Token.
func Track[T any](obj *T, token *Token) {
	checkArgs(obj, token)

	// use token instead of obj itself,
	// because otherwise profile will hold a reference to obj and cleanup will never run
	profile(obj).Add(token, 1)

	token.msg = fmt.Sprintf("%T has not been released", obj)
	if stack := debugbuild.Stack(); stack != nil {
		token.msg += "\nObject created by " + string(stack)
	}

	h := runtime.AddCleanup(obj, leaked, token)
	token.h.Store(&h)
}

// Untrack stops tracking the lifetime of an object.
// It is safe to call this function multiple times concurrently.
func Untrack[T any](obj *T, token *Token) {
	checkArgs(obj, token)

	h := token.h.Swap(nil)
	if h == nil {
		return
	}

	h.Stop()
	profile(obj).Remove(token)
}

// Tracked returns the number of tracked objects of the same type as obj.
func Tracked[T any](obj *T) int {
	p := pprof.Lookup(profileName(obj))
	if p == nil {
		return 0
	}

	return p.Count()
}

// checkArgs checks Track and Untrack arguments.
// Other creative misuses of Track should result in panics too, if less clear.
func checkArgs(obj any, token *Token) {
	if obj == nil {
		panic("obj must not be nil")
	}

	if token == nil {
		panic("token must not be nil")
	}

	pv := reflect.ValueOf(obj)
	if pv.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("obj must be a pointer to struct, got %T", obj))
	}

	v := pv.Elem()
	if v.Kind() != reflect.Struct {
		panic(fmt.Sprintf("obj must be a pointer to struct, got %T", obj))
	}

	f := v.FieldByName("token")
	if f.Kind() != reflect.Ptr || f.UnsafePointer() != unsafe.Pointer(token) {
		panic("token must be a pointer field of a struct")
	}
}
