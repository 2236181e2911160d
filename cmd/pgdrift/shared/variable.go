package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Required is a setting that must have a value for a command to run.
type Required interface {
	Name() string
	IsSet() bool
}

func Validate(vars ...Required) error {
	missing := []string{}
	for _, s := range vars {
		if !s.IsSet() {
			missing = append(missing, s.Name())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if len(missing) == 1 {
		return fmt.Errorf(`required flag "%s" not set`, missing[0])
	}
	return fmt.Errorf(`required flags "%s" not set`, strings.Join(missing, `", "`))
}

// NewVariable returns the first non-zero value in values, which callers list
// in order of precedence: flag, environment, config file, default.
func NewVariable[T comparable](name string, values ...T) Variable[T] {
	var result T // starts at zero value
	for _, v := range values {
		if v != result {
			result = v
			break
		}
	}
	return Variable[T]{name: name, value: result}
}

type Variable[T comparable] struct {
	name  string
	value T
}

func (s Variable[T]) Name() string {
	return s.name
}

func (s Variable[T]) IsSet() bool {
	var zero T
	return s.value != zero
}

func (s Variable[T]) Value() T {
	return s.value
}

// envInt parses an integer environment variable, treating a missing or
// malformed value as unset.
func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

// envBool parses a boolean environment variable, treating a missing or
// malformed value as false.
func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return v
}

// envDuration parses a duration environment variable like "500ms", treating
// a missing or malformed value as unset.
func envDuration(key string) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

// Any returns the value as an interface, for printing variables of mixed
// types together.
func (s Variable[T]) Any() any {
	return s.value
}
