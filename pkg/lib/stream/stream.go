// Package stream defines the fixed table of logical streams every spawned
// child is wired with. There are exactly six kinds; their direction, payload
// class, child-side slot number and bootstrap variable name are all fixed at
// compile time and never configurable.
package stream

// Kind identifies one of the six logical communication channels between the
// shell and a child process.
type Kind int

const (
	Stdin Kind = iota
	Stdout
	Stderr
	Stddbg
	Stddati
	Stddato
)

// Count is the number of logical streams. Every spawn creates all of them;
// there is no subset spawning.
const Count = 6

// Direction says which side of the pipe the child holds.
type Direction int

const (
	// ParentToChild streams are written by the shell and read by the child.
	ParentToChild Direction = iota
	// ChildToParent streams are written by the child and drained by the shell.
	ChildToParent
)

func (d Direction) String() string {
	if d == ParentToChild {
		return "parent-to-child"
	}
	return "child-to-parent"
}

// Payload classifies the bytes a stream carries. Binary streams are forwarded
// verbatim; text streams may be batched at newline boundaries when they target
// a terminal, but are never transformed.
type Payload int

const (
	Text Payload = iota
	Binary
)

func (p Payload) String() string {
	if p == Binary {
		return "binary"
	}
	return "text"
}

// Kinds returns all six kinds in slot order.
func Kinds() [Count]Kind {
	return [Count]Kind{Stdin, Stdout, Stderr, Stddbg, Stddati, Stddato}
}

// Valid reports whether k is one of the six defined kinds.
func (k Kind) Valid() bool {
	return k >= Stdin && k <= Stddato
}

// String returns the conventional lowercase stream name.
func (k Kind) String() string {
	switch k {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	case Stddbg:
		return "stddbg"
	case Stddati:
		return "stddati"
	case Stddato:
		return "stddato"
	default:
		return "unknown"
	}
}

// Direction returns the fixed direction for the kind.
func (k Kind) Direction() Direction {
	switch k {
	case Stdin, Stddati:
		return ParentToChild
	default:
		return ChildToParent
	}
}

// Payload returns the fixed payload class for the kind. The two data channels
// are binary; everything else is line-oriented text.
func (k Kind) Payload() Payload {
	switch k {
	case Stddati, Stddato:
		return Binary
	default:
		return Text
	}
}

// Slot returns the child-side slot number for the kind. On fork/exec
// platforms the slot is literally the file descriptor the child sees; on the
// handle-passing path it is only an ordering convention and the bootstrap
// table in the environment is authoritative.
func (k Kind) Slot() int {
	return int(k)
}

// Bootstrap environment variable names, one per kind. The child runtime
// consumes these once at startup, before user code runs, and they are not
// part of the user-visible environment afterward.
const envPrefix = "HEXSH_STREAM_"

var envNames = [Count]string{
	Stdin:   envPrefix + "STDIN",
	Stdout:  envPrefix + "STDOUT",
	Stderr:  envPrefix + "STDERR",
	Stddbg:  envPrefix + "STDDBG",
	Stddati: envPrefix + "STDDATI",
	Stddato: envPrefix + "STDDATO",
}

// EnvVar returns the bootstrap environment variable name for the kind.
func (k Kind) EnvVar() string {
	return envNames[k]
}

// ByDirection returns the kinds flowing in the given direction, in slot order.
func ByDirection(d Direction) []Kind {
	var out []Kind
	for _, k := range Kinds() {
		if k.Direction() == d {
			out = append(out, k)
		}
	}
	return out
}

// Parse maps a lowercase stream name back to its Kind.
func Parse(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.String() == name {
			return k, true
		}
	}
	return Kind(-1), false
}
