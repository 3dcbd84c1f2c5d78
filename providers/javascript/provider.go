package javascript

import (
	"github.com/jacekjursza/codehem/providers/base"
)

// New creates the JavaScript syntax provider.
func New() *base.Provider {
	return base.New("javascript", GetLanguage())
}
