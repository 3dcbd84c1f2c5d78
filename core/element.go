package core

import (
	"fmt"
	"strings"
)

// Kind identifies the structural category of an Element.
type Kind int

const (
	KindUnknown Kind = iota
	KindClass
	KindMethod
	KindFunction
	KindProperty
	KindPropertyGetter
	KindPropertySetter
	KindStaticProperty
	KindImport
	KindModule
	KindParameter
	KindReturnValue
	KindDecorator
	KindMetaElement
	KindInterface
	KindTypeAlias
	KindEnum
	KindNamespace
	KindFile
)

// AllKinds lists every kind except KindUnknown in declaration order.
func AllKinds() []Kind {
	return []Kind{
		KindClass, KindMethod, KindFunction, KindProperty, KindPropertyGetter,
		KindPropertySetter, KindStaticProperty, KindImport, KindModule,
		KindParameter, KindReturnValue, KindDecorator, KindMetaElement,
		KindInterface, KindTypeAlias, KindEnum, KindNamespace, KindFile,
	}
}

// String returns the canonical path-expression spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	case KindFunction:
		return "function"
	case KindProperty:
		return "property"
	case KindPropertyGetter:
		return "property_getter"
	case KindPropertySetter:
		return "property_setter"
	case KindStaticProperty:
		return "static_property"
	case KindImport:
		return "import"
	case KindModule:
		return "module"
	case KindParameter:
		return "parameter"
	case KindReturnValue:
		return "return_value"
	case KindDecorator:
		return "decorator"
	case KindMetaElement:
		return "meta_element"
	case KindInterface:
		return "interface"
	case KindTypeAlias:
		return "type_alias"
	case KindEnum:
		return "enum"
	case KindNamespace:
		return "namespace"
	case KindFile:
		return "file"
	case KindUnknown:
		return "unknown"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a canonical kind name (case-insensitive) back to a Kind.
func ParseKind(s string) (Kind, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds() {
		if k.String() == name {
			return k, true
		}
	}
	if name == "unknown" {
		return KindUnknown, true
	}
	return KindUnknown, false
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown element kind %q", text)
	}
	*k = parsed
	return nil
}

// IsMember reports whether elements of this kind live inside a class body.
func (k Kind) IsMember() bool {
	switch k {
	case KindMethod, KindProperty, KindPropertyGetter, KindPropertySetter, KindStaticProperty:
		return true
	}
	return false
}

// IsCallable reports whether the kind denotes a function-like element.
func (k Kind) IsCallable() bool {
	switch k {
	case KindMethod, KindFunction, KindPropertyGetter, KindPropertySetter:
		return true
	}
	return false
}

// IsContainer reports whether the kind can own member elements.
func (k Kind) IsContainer() bool {
	switch k {
	case KindClass, KindInterface, KindEnum, KindNamespace:
		return true
	}
	return false
}

// Range is a 1-indexed inclusive line span. The zero value means "not found".
type Range struct {
	Start int `json:"start_line"`
	End   int `json:"end_line"`
}

// NotFound is the sentinel range returned when nothing matched.
var NotFound = Range{}

// Found reports whether r denotes a real location.
func (r Range) Found() bool {
	return r.Start > 0 && r.Start <= r.End
}

// Lines returns the number of lines covered.
func (r Range) Lines() int {
	if !r.Found() {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether other lies entirely inside r.
func (r Range) Contains(other Range) bool {
	return r.Found() && other.Found() && other.Start >= r.Start && other.End <= r.End
}

func (r Range) String() string {
	return fmt.Sprintf("(%d, %d)", r.Start, r.End)
}
