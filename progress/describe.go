package progress

import (
	"fmt"
	"strconv"
	"strings"
)

// Describer is implemented by arguments that render their own description.
type Describer interface {
	Describe() string
}

// kwarg is a named argument created by Kw.
type kwarg struct {
	name  string
	value any
}

// Kw marks value as a keyword argument, rendered as name=value by Describe.
func Kw(name string, value any) any {
	return kwarg{name: name, value: value}
}

// Describe renders a call as name(arg, arg, key=value).
//
// Each argument uses its Describe or String method when it has one. Strings
// are quoted. Anything else is formatted with %v.
func Describe(name string, args ...any) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		if kw, ok := arg.(kwarg); ok {
			b.WriteString(kw.name)
			b.WriteByte('=')
			arg = kw.value
		}
		b.WriteString(describeArg(arg))
	}
	b.WriteByte(')')
	return b.String()
}

func describeArg(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case Describer:
		return x.Describe()
	case fmt.Stringer:
		return x.String()
	case string:
		return strconv.Quote(x)
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(x))
	default:
		return fmt.Sprintf("%v", x)
	}
}
