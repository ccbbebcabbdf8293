package listq

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Settings are process-wide defaults shared by every schema that does
// not override them.
type Settings struct {
	// DefaultLimit is the page size applied when the request names
	// none.
	DefaultLimit int `json:"default_limit" envconfig:"LISTQ_DEFAULT_LIMIT" default:"50"`
	// MaxLimit caps requested page sizes; NoLimit disables the cap.
	MaxLimit int `json:"max_limit" envconfig:"LISTQ_MAX_LIMIT" default:"1000"`
	// DefaultPaginationType applies when the request provides no
	// pagination parameters at all.
	DefaultPaginationType PaginationType `json:"default_pagination_type" envconfig:"LISTQ_DEFAULT_PAGINATION_TYPE" default:"offset"`
	// ReplaceInvalidParams repairs invalid requests instead of
	// rejecting them.
	ReplaceInvalidParams bool `json:"replace_invalid_params" envconfig:"LISTQ_REPLACE_INVALID_PARAMS" default:"false"`
	// MaxFilters and MaxInValues bound request size; zero disables the
	// bound.
	MaxFilters  int `json:"max_filters" envconfig:"LISTQ_MAX_FILTERS" default:"100"`
	MaxInValues int `json:"max_in_values" envconfig:"LISTQ_MAX_IN_VALUES" default:"500"`
}

// DefaultSettings returns the built-in defaults without consulting the
// environment.
func DefaultSettings() Settings {
	return Settings{
		DefaultLimit:          50,
		MaxLimit:              1000,
		DefaultPaginationType: PaginateOffset,
		MaxFilters:            100,
		MaxInValues:           500,
	}
}

// SettingsFromEnv loads settings from LISTQ_* environment variables,
// falling back to the built-in defaults for anything unset.
func SettingsFromEnv() (Settings, error) {
	var s Settings
	if err := envconfig.Process("listq", &s); err != nil {
		return Settings{}, err
	}
	switch s.DefaultPaginationType {
	case PaginateOffset, PaginatePage, PaginateCursor:
	default:
		return Settings{}, fmt.Errorf("LISTQ_DEFAULT_PAGINATION_TYPE: unknown pagination type %q", s.DefaultPaginationType)
	}
	if s.DefaultLimit < 1 {
		return Settings{}, fmt.Errorf("LISTQ_DEFAULT_LIMIT: must be at least 1")
	}
	if s.MaxLimit < NoLimit {
		return Settings{}, fmt.Errorf("LISTQ_MAX_LIMIT: invalid value %d", s.MaxLimit)
	}
	return s, nil
}
