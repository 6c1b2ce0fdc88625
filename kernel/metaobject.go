/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package kernel

import (
	"reflect"
	"sync"
)

// MetaObject is the runtime type descriptor attached to every Object: a
// class name, the reflect.Type of the concrete Go value embedding Object
// (if registered through RegisterClass), its declared base class, and a
// table of exposed properties. It gives the kernel a dynamic cast/
// introspection facility comparable to Qt's moc-generated QMetaObject,
// built from reflection instead of code generation.
type MetaObject struct {
	name string
	rt   reflect.Type
	base *MetaObject

	propMu sync.RWMutex
	props  map[string]PropertyInfo
}

// PropertyInfo describes one property exposed on a class via RegisterProperty.
type PropertyInfo struct {
	Name     string
	Type     reflect.Type
	Get      func(o *Object) any
	Set      func(o *Object, v any) bool
}

var (
	classMu    sync.RWMutex
	classByRT  = map[reflect.Type]*MetaObject{}
	classByName = map[string]*MetaObject{}
)

// RegisterClass associates a MetaObject named name, with optional base
// class baseName, to the Go type of sample. NewObject looks classes up by
// the dynamic type of the *Object it creates, so only a sample of type
// *Object is ever matched; a class registered for another type (such as a
// struct embedding *Object) is reported by no Object and is reachable only
// as a base class by name.
func RegisterClass(name string, baseName string, sample any) *MetaObject {
	classMu.Lock()
	defer classMu.Unlock()

	mo := &MetaObject{name: name, props: map[string]PropertyInfo{}}
	if sample != nil {
		mo.rt = reflect.TypeOf(sample)
	}
	if baseName != "" {
		mo.base = classByName[baseName]
	}

	classByName[name] = mo
	if mo.rt != nil {
		classByRT[mo.rt] = mo
	}
	return mo
}

// classFor looks up the MetaObject registered for o's concrete type,
// falling back to a synthesized "Object" MetaObject with no base.
func classFor(o *Object) *MetaObject {
	classMu.RLock()
	mo := classByRT[reflect.TypeOf(o)]
	classMu.RUnlock()
	if mo != nil {
		return mo
	}
	return &MetaObject{name: "Object", props: map[string]PropertyInfo{}}
}

// Name returns the class name.
func (m *MetaObject) Name() string {
	if m == nil {
		return ""
	}
	return m.name
}

// Inherits reports whether m is, or derives (directly or transitively)
// from, the class named name.
func (m *MetaObject) Inherits(name string) bool {
	for c := m; c != nil; c = c.base {
		if c.name == name {
			return true
		}
	}
	return false
}

// RegisterProperty exposes a named, typed property on m, readable/writable
// through Object.Property/SetProperty.
func (m *MetaObject) RegisterProperty(p PropertyInfo) {
	m.propMu.Lock()
	defer m.propMu.Unlock()
	m.props[p.Name] = p
}

func (m *MetaObject) property(name string) (PropertyInfo, bool) {
	for c := m; c != nil; c = c.base {
		c.propMu.RLock()
		p, ok := c.props[name]
		c.propMu.RUnlock()
		if ok {
			return p, true
		}
	}
	return PropertyInfo{}, false
}

// Property reads a registered property's current value from o.
func (o *Object) Property(name string) (any, bool) {
	if o == nil || o.meta == nil {
		return nil, false
	}
	p, ok := o.meta.property(name)
	if !ok || p.Get == nil {
		return nil, false
	}
	return p.Get(o), true
}

// SetProperty writes a registered property's value on o, reporting whether
// the property exists and accepted the value.
func (o *Object) SetProperty(name string, v any) bool {
	if o == nil || o.meta == nil {
		return false
	}
	p, ok := o.meta.property(name)
	if !ok || p.Set == nil {
		return false
	}
	return p.Set(o, v)
}

// CastTo reports whether o's registered class is, or derives from, name -
// the dynamic-cast check a generated RPC stub uses before treating an
// Object handle as a more specific type.
func CastTo(o *Object, name string) bool {
	if o == nil || o.meta == nil {
		return false
	}
	return o.meta.Inherits(name)
}
