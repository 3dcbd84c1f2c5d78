package python

import (
	"github.com/jacekjursza/codehem/providers/base"
)

// New creates the Python syntax provider.
func New() *base.Provider {
	return base.New("python", GetLanguage())
}
