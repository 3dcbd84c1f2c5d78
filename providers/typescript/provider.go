package typescript

import (
	"github.com/jacekjursza/codehem/providers/base"
)

// New creates the TypeScript syntax provider.
func New() *base.Provider {
	return base.New("typescript", GetLanguage())
}
